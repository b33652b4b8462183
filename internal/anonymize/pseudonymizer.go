package anonymize

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"tabular-anonymizer/internal/cache"
)

// DefaultTokenLength is the number of hex characters kept from the keyed
// hash when the configuration does not override it.
const DefaultTokenLength = 12

// hangulNameRe matches a 2-4 syllable Korean person name, the name shape
// the initial-letter mask applies to.
var hangulNameRe = regexp.MustCompile(`^[가-힣]{2,4}$`)

// Pseudonymizer produces deterministic keyed-hash tokens. The salt is fixed
// for the lifetime of the instance so identical inputs always map to
// identical tokens within a run.
type Pseudonymizer struct {
	salt     []byte
	tokenLen int
	tokens   *cache.TokenCache
}

// NewPseudonymizer creates a pseudonymizer. An empty salt is a hard
// configuration error: silently defaulting the salt would make tokens
// guessable, so the engine refuses to start instead.
func NewPseudonymizer(salt string, tokenLen int) (*Pseudonymizer, error) {
	if strings.TrimSpace(salt) == "" {
		return nil, fmt.Errorf("pseudonymization salt is not configured")
	}
	if tokenLen <= 0 {
		tokenLen = DefaultTokenLength
	}
	if tokenLen > sha256.Size*2 {
		return nil, fmt.Errorf("token length %d exceeds hash size", tokenLen)
	}

	return &Pseudonymizer{
		salt:     []byte(salt),
		tokenLen: tokenLen,
		tokens:   cache.NewTokenCache(4096),
	}, nil
}

// Token returns the keyed-hash token for a value: HMAC-SHA256 over the
// trimmed input, truncated to the configured hex length. Blank input maps
// to the empty string.
func (p *Pseudonymizer) Token(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}

	if token, ok := p.tokens.Get(v); ok {
		return token
	}

	mac := hmac.New(sha256.New, p.salt)
	mac.Write([]byte(v))
	token := hex.EncodeToString(mac.Sum(nil))[:p.tokenLen]

	p.tokens.Set(v, token)
	return token
}

// MaskName pseudonymizes a person name. A value matching the 2-4 syllable
// Korean name shape keeps its first syllable followed by "00"; anything
// else falls back to the generic token.
func (p *Pseudonymizer) MaskName(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	if hangulNameRe.MatchString(v) {
		runes := []rune(v)
		return string(runes[0]) + "00"
	}
	return p.Token(v)
}
