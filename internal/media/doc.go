// Package media opens video containers through ffprobe and exposes the
// immutable Source handle every pipeline stage consumes.
package media
