// Package reel assembles selected highlight segments into an edit plan for
// the external renderer.
package reel
