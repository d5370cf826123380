// Package track associates per-frame face detections into continuous
// per-camera tracks, tolerating short occlusions and discarding spurious
// blips.
package track
