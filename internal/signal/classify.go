// Package signal labels stories and clusters with a maturity signal and a
// confidence level. Labels are recomputed from current counts on every call.
package signal

import (
	"strings"
	"time"

	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/vocab"
)

type Signal string

const (
	Breaking   Signal = "breaking"
	Developing Signal = "developing"
	Stabilized Signal = "stabilized"
)

type Confidence string

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

const (
	breakingWindow   = 30 * time.Minute
	developingWindow = 6 * time.Hour
)

// Rank orders confidence levels so callers can compare them.
func (c Confidence) Rank() int {
	switch c {
	case High:
		return 2
	case Medium:
		return 1
	default:
		return 0
	}
}

// Classify derives the maturity signal from the age of firstPublished and the source count.
func Classify(firstPublished, now time.Time, sourceCount int) Signal {
	age := now.Sub(firstPublished)
	switch {
	case age < breakingWindow:
		return Breaking
	case age < developingWindow && sourceCount >= 2:
		return Developing
	case sourceCount >= 3:
		return Stabilized
	default:
		return Developing
	}
}

func ConfidenceFor(sourceCount, verifiedCount int) Confidence {
	switch {
	case verifiedCount >= 3:
		return High
	case sourceCount >= 3 || verifiedCount >= 2:
		return Medium
	default:
		return Low
	}
}

// Labels bundles the derived presentation fields.
type Labels struct {
	Signal              Signal     `json:"signal"`
	Confidence          Confidence `json:"confidence"`
	VerifiedSourceCount int        `json:"verified_source_count"`
	IsContradicted      bool       `json:"is_contradicted"`
}

// Verifier matches source names against the verified-outlet allowlist.
type Verifier struct {
	allowlist []string
}

func NewVerifier(tables *vocab.Tables) *Verifier {
	if tables == nil {
		tables = vocab.Default()
	}
	return &Verifier{allowlist: tables.VerifiedSources()}
}

func (v *Verifier) IsVerified(sourceName string) bool {
	name := strings.ToLower(strings.TrimSpace(sourceName))
	if name == "" {
		return false
	}
	for _, entry := range v.allowlist {
		if strings.Contains(name, entry) {
			return true
		}
	}
	return false
}

// CountVerified counts the source records whose outlet is on the allowlist.
// Records are expected to be deduplicated by URL already, so two articles
// from the same outlet count twice.
func (v *Verifier) CountVerified(sources []news.SourceRecord) int {
	verified := 0
	for _, src := range sources {
		if v.IsVerified(src.SourceName) {
			verified++
		}
	}
	return verified
}

// Label computes signal and confidence for an aggregate with the given sources.
func (v *Verifier) Label(firstPublished, now time.Time, sources []news.SourceRecord) Labels {
	verified := v.CountVerified(sources)
	return Labels{
		Signal:              Classify(firstPublished, now, len(sources)),
		Confidence:          ConfidenceFor(len(sources), verified),
		VerifiedSourceCount: verified,
	}
}
