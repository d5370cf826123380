// Package services provides the shared error taxonomy and context plumbing
// used by pipeline stages and external-tool clients.
package services
