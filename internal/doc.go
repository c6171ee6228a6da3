// Package internal holds module-private helpers shared by the idcore root
// package: device fingerprint derivation and PII masking for the export
// surfaces.
//
// # What this package must NOT do
//
//   - Be imported outside the idcore module.
//   - Persist anything; it is pure computation.
package internal
