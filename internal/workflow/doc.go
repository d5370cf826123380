// Package workflow drives queue items through the pipeline stages: analyze,
// cluster, plan, render. A single claim loop schedules work; items run
// concurrently up to the configured limit.
package workflow
