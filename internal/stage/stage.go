// Package stage defines the contract between the workflow manager and the
// pipeline stages it drives.
package stage

import (
	"context"

	"reelsmith/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Prepare validates inputs and seeds progress, Execute does the work, and
// both persist their changes through the item the manager passes in.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a workflow stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
