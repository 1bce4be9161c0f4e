// Package catalog implements the domain layer for the artifact registry.
//
// This package follows Domain-Driven Design (DDD) principles:
//   - Contains only pure Go code with standard library imports (no external dependencies)
//   - Defines the Artifact entity and the Registry aggregate
//   - Implements domain logic (registration validation, provenance closure,
//     latest-by-type selection, retention pruning)
//   - Has no knowledge of infrastructure concerns (file I/O, YAML parsing,
//     content hashing, databases)
//
// # Core Types
//
// Artifact is one registered pipeline output: a caller-assigned unique name,
// a type tag from a caller-supplied allowed set, the path to its persisted
// bytes, a SHA-256 content hash, a size, a registration timestamp, the names
// of the artifacts it was derived from, and an open metadata map.
//
// Registry is the full catalog. It is a value: every mutating operation
// returns a new Registry and leaves the receiver untouched, so a failed
// registration can never leave partially-applied state and callers can
// thread registry values through an optimistic-concurrency retry loop.
//
// # Provenance
//
// InputArtifacts entries must name artifacts already present at registration
// time. Because edges only ever point backwards, the provenance graph is a
// DAG by construction; no cycle check is needed.
//
// The registry records file hashes and sizes but never touches the
// filesystem itself. Callers (the application layer) stat and hash files and
// pass the results in via Registration.
package catalog
