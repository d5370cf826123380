// Package segment selects non-overlapping highlight intervals from a scored
// timeline under total-duration, length, gap, and guest-diversity
// constraints.
package segment
