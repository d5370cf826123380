// Package score turns detections, audio levels, and guest identities into a
// dense interest curve over the video timeline.
package score
