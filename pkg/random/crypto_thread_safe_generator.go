package random

import (
	crypto_rand "crypto/rand"
	"fmt"
)

type cryptoThreadSafeGenerator struct{}

func (g cryptoThreadSafeGenerator) Read(p []byte) (int, error) {
	n, err := crypto_rand.Read(p)
	if err != nil {
		// The operating system's entropy source being broken is
		// not a condition the caller can recover from.
		panic(fmt.Sprintf("Failed to obtain random data: %s", err))
	}
	return n, nil
}

func (g cryptoThreadSafeGenerator) IsThreadSafe() {}

// CryptoThreadSafeGenerator is an instance of ThreadSafeGenerator that
// is suitable for cryptographic purposes, such as generating OAuth 2.0
// state parameters, nonces and session identifiers.
var CryptoThreadSafeGenerator ThreadSafeGenerator = cryptoThreadSafeGenerator{}
