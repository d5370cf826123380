// Package sampler turns a media source into lazy, restartable streams of
// analysis frames and audio windows by driving an external ffmpeg decoder.
// Channels are bounded so slow detection throughput pauses decoding instead
// of buffering unboundedly.
package sampler
