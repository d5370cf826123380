// Package logging builds the slog loggers shared by the daemon, CLI, and
// pipeline stages, with a human-oriented console handler and a JSON handler
// for machine consumption. Context plumbing attaches queue item and stage
// identifiers to every record emitted inside a pipeline run.
package logging
