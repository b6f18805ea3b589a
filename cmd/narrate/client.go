package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type jobSummary struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Stage  string `json:"stage"`
	Output string `json:"output_path"`
	Error  string `json:"error"`
}

type jobsPayload struct {
	Jobs []jobSummary `json:"jobs"`
}

type countPayload struct {
	Count int64 `json:"count"`
}

type healthPayload struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

type submitParams struct {
	filePath  string
	videoURL  string
	script    []byte
	voice     string
	subtitles bool
}

func (c *apiClient) submit(ctx context.Context, params submitParams) (jobSummary, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if params.filePath != "" {
		file, err := os.Open(params.filePath)
		if err != nil {
			return jobSummary{}, fmt.Errorf("open video: %w", err)
		}
		defer file.Close()
		part, err := writer.CreateFormFile("video", filepath.Base(params.filePath))
		if err != nil {
			return jobSummary{}, err
		}
		if _, err := io.Copy(part, file); err != nil {
			return jobSummary{}, fmt.Errorf("read video: %w", err)
		}
	}
	if params.videoURL != "" {
		if err := writer.WriteField("video_url", params.videoURL); err != nil {
			return jobSummary{}, err
		}
	}
	if err := writer.WriteField("script", string(params.script)); err != nil {
		return jobSummary{}, err
	}
	if params.voice != "" {
		if err := writer.WriteField("voice", params.voice); err != nil {
			return jobSummary{}, err
		}
	}
	if params.subtitles {
		if err := writer.WriteField("add_subtitles", "true"); err != nil {
			return jobSummary{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return jobSummary{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/narrate", &body)
	if err != nil {
		return jobSummary{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var summary jobSummary
	if err := c.do(req, http.StatusAccepted, &summary); err != nil {
		return jobSummary{}, err
	}
	return summary, nil
}

func (c *apiClient) status(ctx context.Context, id string) (jobSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+url.PathEscape(id), nil)
	if err != nil {
		return jobSummary{}, err
	}
	var summary jobSummary
	if err := c.do(req, http.StatusOK, &summary); err != nil {
		return jobSummary{}, err
	}
	return summary, nil
}

// download streams the finished artifact to destPath.
func (c *apiClient) download(ctx context.Context, id, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("write artifact: %w", err)
	}
	return out.Close()
}

func (c *apiClient) jobs(ctx context.Context, statuses []string) ([]jobSummary, error) {
	endpoint := c.baseURL + "/jobs"
	if len(statuses) > 0 {
		query := url.Values{}
		for _, status := range statuses {
			query.Add("status", status)
		}
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var payload jobsPayload
	if err := c.do(req, http.StatusOK, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

func (c *apiClient) retry(ctx context.Context, ids []string) (int64, error) {
	return c.postCount(ctx, "/jobs/retry", map[string]any{"ids": ids})
}

func (c *apiClient) clear(ctx context.Context, status string) (int64, error) {
	return c.postCount(ctx, "/jobs/clear", map[string]any{"status": status})
}

func (c *apiClient) health(ctx context.Context) (healthPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return healthPayload{}, err
	}
	var payload healthPayload
	if err := c.do(req, http.StatusOK, &payload); err != nil {
		return healthPayload{}, err
	}
	return payload, nil
}

func (c *apiClient) postCount(ctx context.Context, path string, body any) (int64, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	var payload countPayload
	if err := c.do(req, http.StatusOK, &payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

func (c *apiClient) do(req *http.Request, wantStatus int, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		return decodeAPIError(resp)
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s (%s)", payload.Error, resp.Status)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
