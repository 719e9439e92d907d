package cryptor

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"

	"github.com/meshguard/authservice/pkg/random"
	"github.com/meshguard/authservice/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type aesGCMTokenEncryptor struct {
	aead                  cipher.AEAD
	randomNumberGenerator random.ThreadSafeGenerator
}

// NewAESGCMTokenEncryptor creates a TokenEncryptor that seals values
// using AES-256-GCM, with the key derived from a configured secret.
// The wire format is RawURLEncoding(nonce || ciphertext), making the
// result safe to place in a cookie value.
func NewAESGCMTokenEncryptor(secret string, randomNumberGenerator random.ThreadSafeGenerator) (TokenEncryptor, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, util.StatusWrap(err, "Failed to create cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, util.StatusWrap(err, "Failed to create AEAD")
	}
	return &aesGCMTokenEncryptor{
		aead:                  aead,
		randomNumberGenerator: randomNumberGenerator,
	}, nil
}

func (te *aesGCMTokenEncryptor) Encrypt(plaintext string) string {
	nonce := make([]byte, te.aead.NonceSize(), te.aead.NonceSize()+len(plaintext)+te.aead.Overhead())
	if _, err := te.randomNumberGenerator.Read(nonce); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(
		te.aead.Seal(nonce, nonce, []byte(plaintext), nil))
}

func (te *aesGCMTokenEncryptor) Decrypt(ciphertext string) (string, error) {
	nonceAndCiphertext, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to decode ciphertext")
	}
	nonceSize := te.aead.NonceSize()
	if len(nonceAndCiphertext) < nonceSize {
		return "", status.Error(codes.InvalidArgument, "Ciphertext is too short to contain a nonce")
	}
	plaintext, err := te.aead.Open(nil, nonceAndCiphertext[:nonceSize], nonceAndCiphertext[nonceSize:], nil)
	if err != nil {
		return "", util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to decrypt ciphertext")
	}
	return string(plaintext), nil
}
