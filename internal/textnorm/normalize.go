package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"horse.fit/storyline/internal/vocab"
)

const (
	minTokenRunes  = 3
	hashKeyMaxRune = 100
)

type Normalizer struct {
	tables *vocab.Tables
}

func New(tables *vocab.Tables) *Normalizer {
	if tables == nil {
		tables = vocab.Default()
	}
	return &Normalizer{tables: tables}
}

// Tokens lowercases text, splits on anything that is not a letter or digit,
// and drops short tokens and stop words. Order and duplicates are preserved.
func (n *Normalizer) Tokens(text string) []string {
	return n.tokens(text, false)
}

// TokenSet is Tokens deduplicated.
func (n *Normalizer) TokenSet(text string) map[string]struct{} {
	tokens := n.Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// HashKey is the merge key input: Tokens minus newsroom boilerplate,
// space-joined and cut to the first 100 characters.
func (n *Normalizer) HashKey(headline string) string {
	key := strings.Join(n.tokens(headline, true), " ")
	if utf8.RuneCountInString(key) <= hashKeyMaxRune {
		return key
	}
	return strings.TrimSpace(string([]rune(key)[:hashKeyMaxRune]))
}

func (n *Normalizer) tokens(text string, dropOperational bool) []string {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}

	parts := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if utf8.RuneCountInString(part) < minTokenRunes {
			continue
		}
		if n.tables.IsStopWord(part) {
			continue
		}
		if dropOperational && n.tables.IsOperational(part) {
			continue
		}
		tokens = append(tokens, part)
	}
	return tokens
}

// ContentHash is the hex SHA-256 of a hash key.
func ContentHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Jaccard is |a∩b| / |a∪b|, and 0 when either set is empty.
func Jaccard(left, right map[string]struct{}) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	small, large := left, right
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}
	return float64(intersection) / float64(len(left)+len(right)-intersection)
}
