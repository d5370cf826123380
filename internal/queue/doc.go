// Package queue persists the processing queue in SQLite. Each item is one
// source video moving through the pipeline's statuses; intermediate artifacts
// ride along as JSON columns so a restart resumes where the previous run
// stopped.
package queue
