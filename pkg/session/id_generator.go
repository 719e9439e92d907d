package session

import (
	"encoding/base64"

	"github.com/meshguard/authservice/pkg/random"
	"github.com/meshguard/authservice/pkg/util"
)

// sessionIDSizeBytes is the entropy of a session identifier. The
// identifier is the only thing binding a browser to its server side
// tokens, so it is given twice the entropy of the state parameter.
const sessionIDSizeBytes = 64

// IDGenerator produces opaque, high entropy session identifiers.
type IDGenerator interface {
	Generate() (string, error)
}

type randomIDGenerator struct {
	randomNumberGenerator random.ThreadSafeGenerator
}

// NewRandomIDGenerator creates an IDGenerator that draws 64 bytes from
// a cryptographic random number generator and encodes them using URL
// safe base64 without padding.
func NewRandomIDGenerator(randomNumberGenerator random.ThreadSafeGenerator) IDGenerator {
	return &randomIDGenerator{
		randomNumberGenerator: randomNumberGenerator,
	}
}

func (g *randomIDGenerator) Generate() (string, error) {
	var id [sessionIDSizeBytes]byte
	if _, err := g.randomNumberGenerator.Read(id[:]); err != nil {
		return "", util.StatusWrap(err, "Failed to generate session ID")
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}
