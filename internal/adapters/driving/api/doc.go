// Package api exposes the backend over HTTP for the desktop frontend.
// The server binds to loopback and speaks JSON; every mutating
// endpoint persists the affected sidecar file before responding.
package api
