// Package canon produces canonical JSON and content fingerprints for domain
// documents.
//
// Canonical JSON follows RFC 8785 closely enough for deterministic hashing:
//   - object keys sorted by UTF-16 code units
//   - no insignificant whitespace
//   - no HTML escaping, U+2028/U+2029 emitted literally
//   - strings NFC normalised
//   - numbers emitted as their shortest JSON literal (json.Number passthrough)
//
// Fingerprints are SHA-256 over the canonical bytes with a domain prefix so
// hashes of different record kinds can never collide.
package canon
