// Command reelsmith is the CLI for queueing videos, running the pipeline,
// and inspecting highlight reel plans.
package main
