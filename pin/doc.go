// Package pin implements the 6-digit PIN credential: complexity policy
// validation and memory-hard argon2id hashing with a server-wide pepper.
//
// Stored hashes are self-describing: "$argon2id$<salt-b64>$<digest-b64>".
// Hashing parameters are fixed for the lifetime of a credential; Verify
// recomputes with the stored salt and compares digests in constant time.
package pin
