// Package sidecar persists chat files as JSON documents next to their
// source PDFs (paper.pdf gets paper.chat). The format is forward
// compatible: unknown fields are ignored on read, and missing optional
// fields fall back to defaults so older files keep loading as the
// format grows.
package sidecar
