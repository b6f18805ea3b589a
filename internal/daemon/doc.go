// Package daemon ties the queue, pipeline and HTTP API together into a
// single-instance background service.
package daemon
