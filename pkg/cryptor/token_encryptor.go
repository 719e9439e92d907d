// Package cryptor provides symmetric encryption of short secrets that
// travel through the user agent, such as the state cookie payload.
package cryptor

// TokenEncryptor encrypts and authenticates opaque strings. Both
// operations must be safe for concurrent use.
type TokenEncryptor interface {
	// Encrypt seals a plaintext into an opaque, URL safe string.
	Encrypt(plaintext string) string
	// Decrypt opens a string produced by Encrypt. Tampered or
	// malformed input yields an InvalidArgument error.
	Decrypt(ciphertext string) (string, error)
}
