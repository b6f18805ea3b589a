// Package acquire resolves job sources, copying local files or downloading
// URLs into the job workspace.
package acquire
