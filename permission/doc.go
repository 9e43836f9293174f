// Package permission provides the role bitmask used by admission checks and a
// small registry that maps role names to masks.
//
// # Superset lattice
//
// Roles are built by OR-ing an incremental bit onto the role below:
// Client=0b001, Developer=0b011, SuperAdmin=0b111. A caller holding mask R
// satisfies a requirement Rq iff R&Rq == Rq. New intermediate roles must be
// composed with [Registry.Extend] so the superset property holds.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import the admission root package, jwt, or session.
//   - Compare masks ordinally.
package permission
