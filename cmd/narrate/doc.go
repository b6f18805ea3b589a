// Command narrate is the CLI client for the narration daemon's HTTP API.
package main
