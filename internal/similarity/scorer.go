package similarity

import (
	"strings"

	"horse.fit/storyline/internal/entity"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/textnorm"
)

const (
	lexicalWeight  = 0.6
	entityWeight   = 0.3
	categoryWeight = 0.1

	entityNeutral    = 0.5
	entityOneSided   = 0.3
	categoryMatch    = 1.0
	categoryMismatch = 0.5
)

// Breakdown exposes the components of one comparison.
type Breakdown struct {
	Lexical  float64 `json:"lexical"`
	Entity   float64 `json:"entity"`
	Category float64 `json:"category"`
	Score    float64 `json:"score"`
}

type Scorer struct {
	norm     *textnorm.Normalizer
	entities *entity.Extractor
}

func NewScorer(norm *textnorm.Normalizer, entities *entity.Extractor) *Scorer {
	return &Scorer{norm: norm, entities: entities}
}

// Score is 0.6*token jaccard + 0.3*entity overlap + 0.1*category match over headline+summary.
func (s *Scorer) Score(a, b news.RawItem) float64 {
	return s.Compare(a, b).Score
}

func (s *Scorer) Compare(a, b news.RawItem) Breakdown {
	textA := a.ComparableText()
	textB := b.ComparableText()

	lexical := textnorm.Jaccard(s.norm.TokenSet(textA), s.norm.TokenSet(textB))
	ent := entityOverlap(s.entities.ExtractSet(textA), s.entities.ExtractSet(textB))
	cat := categoryScore(a.Category, b.Category)

	return Breakdown{
		Lexical:  lexical,
		Entity:   ent,
		Category: cat,
		Score:    lexicalWeight*lexical + entityWeight*ent + categoryWeight*cat,
	}
}

func entityOverlap(left, right map[string]struct{}) float64 {
	switch {
	case len(left) == 0 && len(right) == 0:
		return entityNeutral
	case len(left) == 0 || len(right) == 0:
		return entityOneSided
	default:
		return textnorm.Jaccard(left, right)
	}
}

func categoryScore(left, right string) float64 {
	if strings.EqualFold(strings.TrimSpace(left), strings.TrimSpace(right)) {
		return categoryMatch
	}
	return categoryMismatch
}
