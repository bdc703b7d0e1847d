// Package store provides the SQLite-backed compile cache.
//
// Each successful compilation is recorded once per (graph hash, compiler
// version) pair:
//   - Compilations: graph identity, summary counts and the artifact itself
//   - Kernels: per-kernel entry point and dispatch geometry
//
// # Identity
//
// Graph and artifact hashes come from internal/ir/hash.go (RFC 8785
// canonical JSON, SHA-256 with domain separation). The artifact column holds
// the same canonical JSON, so a stored artifact rehashes to artifact_hash.
//
// # Ordering
//
// Listings are ordered by seq, a per-database counter assigned on insert.
// IDs are UUIDv7 by default.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
