// Package crypto provides the credential-protection primitives used by the
// identity engine: salted lookup hashing for unique identifier keys,
// unsalted ephemeral hashing for short-lived one-time codes, authenticated
// AES-256-GCM encryption for reversible PII, and secure numeric code
// generation.
//
// # Key handling
//
// The lookup salt and the AES key are process-wide secrets supplied once at
// construction. New rejects keys that are not exactly 32 bytes so a
// misconfigured deployment fails at startup, not at first request.
//
// # What this package must NOT do
//
//   - Log, persist, or echo plaintext, keys, or generated codes.
//   - Implement password hashing (that lives in the pin package).
//   - Attempt partial recovery on authentication failure during Decrypt.
package crypto
