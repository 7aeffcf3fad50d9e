package memo

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// SecretMatcher decides how a memo secret is stored and checked. The caller
// supplied value is opaque: whatever hashing a client does happens before it
// reaches us.
type SecretMatcher interface {
	Seal(secret string) (string, error)
	Match(stored, supplied string) bool
}

// PlainSecrets stores the secret as given and compares it verbatim.
type PlainSecrets struct{}

func (PlainSecrets) Seal(secret string) (string, error) { return secret, nil }

func (PlainSecrets) Match(stored, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// BcryptSecrets keeps only a bcrypt digest of the secret at rest. Secrets
// longer than 72 bytes are rejected by bcrypt and surface as a Seal error.
type BcryptSecrets struct {
	Cost int
}

func (b BcryptSecrets) Seal(secret string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (BcryptSecrets) Match(stored, supplied string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
}
