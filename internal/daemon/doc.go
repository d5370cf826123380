// Package daemon wires the queue store, workflow manager, ingest watcher, and
// HTTP API into a single long-running process. It enforces single-instance
// execution with a lock file and exposes health and metrics endpoints.
package daemon
