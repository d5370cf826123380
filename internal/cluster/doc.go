// Package cluster merges face tracks into guest identities across cameras
// and maps each guest to a seat in the venue layout.
package cluster
