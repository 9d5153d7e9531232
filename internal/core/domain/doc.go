// Package domain contains the core entity types for the Margo backend:
// chat files, annotations, notes, and messages.
//
// Domain types are pure data with no I/O. Persistence lives behind the
// driven ports; all mutation of the entity graph goes through the
// chat service so its invariants are enforced in one place.
package domain
