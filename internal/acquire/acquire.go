package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"narrate/internal/services"
)

// Fetcher materializes job sources into the job workspace. Local paths are
// copied so the job owns its input for the whole run; URLs are downloaded.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher whose downloads are capped at timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch resolves the job source into destDir and returns the local path.
// Exactly one of sourcePath or sourceURL must be set; sourcePath wins when
// both are.
func (f *Fetcher) Fetch(ctx context.Context, sourcePath, sourceURL, destDir string) (string, error) {
	switch {
	case sourcePath != "":
		return f.copyLocal(sourcePath, destDir)
	case sourceURL != "":
		return f.download(ctx, sourceURL, destDir)
	default:
		return "", services.Wrap(services.ErrAcquisition, "acquire", "source", "no source path or url", nil)
	}
}

func (f *Fetcher) copyLocal(sourcePath, destDir string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "local", fmt.Sprintf("source %s not readable", sourcePath), err)
	}
	if !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "local", fmt.Sprintf("source %s is not a regular file", sourcePath), nil)
	}
	if info.Size() == 0 {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "local", fmt.Sprintf("source %s is empty", sourcePath), nil)
	}

	destPath := filepath.Join(destDir, "source"+sourceExt(sourcePath))
	in, err := os.Open(sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "local", "open source", err)
	}
	defer in.Close()

	if err := writeStream(destPath, in); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "local", "copy source into workspace", err)
	}
	return destPath, nil
}

func (f *Fetcher) download(ctx context.Context, sourceURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "download", fmt.Sprintf("invalid url %s", sourceURL), err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "download", fmt.Sprintf("fetch %s", sourceURL), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "download", fmt.Sprintf("fetch %s: status %s", sourceURL, resp.Status), nil)
	}

	destPath := filepath.Join(destDir, "source"+urlExt(sourceURL))
	if err := writeStream(destPath, resp.Body); err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "download", "write download", err)
	}
	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		os.Remove(destPath)
		return "", services.Wrap(services.ErrAcquisition, "acquire", "download", fmt.Sprintf("%s returned no data", sourceURL), err)
	}
	return destPath, nil
}

func writeStream(destPath string, r io.Reader) error {
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(destPath)
		return err
	}
	return out.Close()
}

func sourceExt(p string) string {
	if ext := filepath.Ext(p); ext != "" {
		return ext
	}
	return ".mp4"
}

func urlExt(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ".mp4"
	}
	if ext := path.Ext(parsed.Path); ext != "" && !strings.ContainsAny(ext, "?&") {
		return ext
	}
	return ".mp4"
}
