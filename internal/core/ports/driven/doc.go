// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): sidecar file storage, the AI assistant,
// configuration, the document catalog, and page rendering.
package driven
