// Package driving provides the interfaces the HTTP and CLI surfaces
// call into (primary/inbound ports).
package driving
