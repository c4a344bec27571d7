// Package risk turns a trip's risk checklist into a score and a tier.
package risk

import (
	"github.com/ukydev/trip-approvals/internal/apperr"
)

// Tier is the risk classification of a trip.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Score thresholds. A score at or above the threshold belongs to the tier.
const (
	MediumThreshold = 13
	HighThreshold   = 19
)

// Rank orders tiers from least to most risky. Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierLow:
		return 1
	case TierMedium:
		return 2
	case TierHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// TierForScore maps a total score to its tier.
func TierForScore(score int) Tier {
	switch {
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Answers holds the selected option key for each category.
type Answers map[Category]string

// Answer is one scored line of an assessment.
type Answer struct {
	Category Category `json:"category"`
	Option   string   `json:"option"`
	Label    string   `json:"label"`
	Points   int      `json:"points"`
}

// Assessment is the outcome of scoring a checklist.
type Assessment struct {
	Answers []Answer `json:"answers"`
	Score   int      `json:"score"`
	Tier    Tier     `json:"tier"`
}

// Assess scores answers against the canonical category table.
// Every category needs exactly one valid option; nothing defaults to zero.
func Assess(answers Answers) (Assessment, error) {
	verr := &apperr.ValidationError{}
	for category := range answers {
		if _, ok := lookupCategory(category); !ok {
			verr.Add(string(category), "unknown risk category")
		}
	}

	out := Assessment{Answers: make([]Answer, 0, len(categories))}
	for _, def := range categories {
		key, ok := answers[def.Category]
		if !ok || key == "" {
			verr.Add(string(def.Category), "answer required")
			continue
		}
		opt, ok := def.option(key)
		if !ok {
			verr.Add(string(def.Category), "unknown option "+key)
			continue
		}
		out.Answers = append(out.Answers, Answer{
			Category: def.Category,
			Option:   opt.Key,
			Label:    opt.Label,
			Points:   opt.Points,
		})
		out.Score += opt.Points
	}
	if err := verr.OrNil(); err != nil {
		return Assessment{}, err
	}
	out.Tier = TierForScore(out.Score)
	return out, nil
}

// FromStrings converts loosely keyed answers (as stored or posted) to Answers.
func FromStrings(in map[string]string) Answers {
	out := make(Answers, len(in))
	for k, v := range in {
		out[Category(k)] = v
	}
	return out
}

// Strings is the storable form of a.
func (a Answers) Strings() map[string]string {
	out := make(map[string]string, len(a))
	for k, v := range a {
		out[string(k)] = v
	}
	return out
}
