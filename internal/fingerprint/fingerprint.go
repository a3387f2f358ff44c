// Package fingerprint computes the exact-content hash and the 64-bit
// near-duplicate signature for normalized article text. Everything here is a
// pure function of its input.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

const SignatureBits = 64

// Fingerprint is the dedup identity of one article.
type Fingerprint struct {
	ContentHash string
	Simhash     uint64
	// HasSimhash is false when the normalized text produced no tokens;
	// such articles carry no signature and are excluded from clustering.
	HasSimhash bool
}

// Compute hashes normalized text. The caller is expected to have run the
// text through normalize; this function does not re-normalize beyond
// tokenization.
func Compute(normalizedText string) Fingerprint {
	simhash, ok := Simhash64(normalizedText)
	return Fingerprint{
		ContentHash: ContentHashHex(normalizedText),
		Simhash:     simhash,
		HasSimhash:  ok,
	}
}

// ContentHashHex returns the hex-encoded SHA-256 of the text.
func ContentHashHex(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Simhash64 computes a 64-bit locality-sensitive signature. Each token votes
// +1 or -1 on every bit position according to its FNV-1a hash; repeated
// tokens vote repeatedly, which is how frequent terms dominate the signature.
// Returns ok=false for input with no tokens.
func Simhash64(text string) (uint64, bool) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, false
	}

	var bitWeights [SignatureBits]int
	for _, token := range tokens {
		h := hashToken64(token)
		for bit := 0; bit < SignatureBits; bit++ {
			mask := uint64(1) << bit
			if h&mask != 0 {
				bitWeights[bit]++
			} else {
				bitWeights[bit]--
			}
		}
	}

	var result uint64
	for bit := 0; bit < SignatureBits; bit++ {
		if bitWeights[bit] >= 0 {
			result |= uint64(1) << bit
		}
	}
	return result, true
}

// HammingDistance counts differing bits between two signatures.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Confidence maps a Hamming distance to a duplication confidence in [0,1].
// Distance 0 means near-identical (1.0); distance >= 64 means unrelated (0.0).
func Confidence(distance int) float64 {
	c := 1 - float64(distance)/float64(SignatureBits)
	if c < 0 {
		return 0
	}
	return c
}

// Prefix returns the top 16 bits of the signature, used only as a bucketing
// key for candidate lookup.
func Prefix(simhash uint64) uint16 {
	return uint16(simhash >> 48)
}

// tokenize splits on every non-alphanumeric rune, not just whitespace, so
// hyphenation, quoting, and punctuation differences between outlets never
// perturb the signature. Canonical text is already lowercase; lowering again
// here keeps the function safe on raw input.
func tokenize(text string) []string {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return nil
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

func hashToken64(token string) uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(token))
	return hasher.Sum64()
}
