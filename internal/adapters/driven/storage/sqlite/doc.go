// Package sqlite implements the catalog store on an embedded SQLite
// database. The catalog is application metadata (the recently-opened
// list); per-PDF chat data lives in sidecar files, not here.
package sqlite
