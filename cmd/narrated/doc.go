// Command narrated runs the narration daemon: queue store, processing
// pipeline and HTTP API.
package main
