// Package security hashes passwords with argon2id and issues opaque bearer
// tokens whose sha256 digest is what gets stored.
package security
