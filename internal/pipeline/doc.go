// Package pipeline implements the workflow stages: analyze a source video,
// cluster its tracks into guests, plan the highlight reel, and optionally
// render it. Each stage persists its artifact on the queue item.
package pipeline
