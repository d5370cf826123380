// Package detect runs face and audio-event detection over sampled frames and
// audio windows. Backends are pluggable: the mock backend serves tests and dry
// runs, and the command backend delegates to any external detector speaking
// the stdin/stdout JSON protocol. A worker pool handles concurrency, bounded
// retries, and degradation when a backend stays unhealthy.
package detect
