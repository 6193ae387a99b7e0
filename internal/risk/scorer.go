// Package risk implements the content risk scorer: a pure, deterministic
// mapping from message text to a suspicion score and flag list. The scorer
// runs on plaintext before envelope encryption; it holds no state and is safe
// for concurrent use.
package risk

import (
	"strings"

	"aegis/internal/platform/config"
)

// Weights is the suspicion weight table. Everything the scorer adds or
// compares against lives here so thresholds are configuration, not code.
type Weights struct {
	Keyword            int
	Grooming           int
	Readability        int
	ReadabilityEase    float64
	Emoji              int
	EmojiRatio         float64
	Pressure           int
	SuspicionThreshold int
}

// Lexicon holds the configured word lists. Matching is case-insensitive
// substring matching.
type Lexicon struct {
	SuspiciousKeywords []string
	GroomingPhrases    []string
	PressureWords      []string
}

// Assessment is the scorer verdict for one text.
type Assessment struct {
	Score      int      `json:"suspicion_score"`
	Flags      []string `json:"flags"`
	Suspicious bool     `json:"flagged"`
}

// Scorer evaluates message text against the weight table and lexicon.
type Scorer struct {
	weights  Weights
	keywords []string
	grooming []string
	pressure []string
}

// New builds a scorer. Lexicon entries are lowered once up front.
func New(w Weights, lex Lexicon) *Scorer {
	return &Scorer{
		weights:  w,
		keywords: lowerAll(lex.SuspiciousKeywords),
		grooming: lowerAll(lex.GroomingPhrases),
		pressure: lowerAll(lex.PressureWords),
	}
}

// FromConfig builds a scorer from the environment-driven risk configuration.
func FromConfig(cfg config.Risk) *Scorer {
	return New(
		Weights{
			Keyword:            cfg.KeywordWeight,
			Grooming:           cfg.GroomingWeight,
			Readability:        cfg.ReadabilityWeight,
			ReadabilityEase:    cfg.ReadabilityEase,
			Emoji:              cfg.EmojiWeight,
			EmojiRatio:         cfg.EmojiRatio,
			Pressure:           cfg.PressureWeight,
			SuspicionThreshold: cfg.SuspicionThreshold,
		},
		Lexicon{
			SuspiciousKeywords: cfg.SuspiciousKeywords,
			GroomingPhrases:    cfg.GroomingPhrases,
			PressureWords:      cfg.PressureWords,
		},
	)
}

// Threshold returns the configured suspicion threshold.
func (s *Scorer) Threshold() int { return s.weights.SuspicionThreshold }

// Score evaluates text. The heuristics are additive and order-independent:
// per-occurrence keyword, grooming, and pressure weights, plus one-shot
// readability and emoji-density signals. Empty or whitespace-only text scores
// zero with no flags; malformed UTF-8 is tolerated (invalid bytes decode as
// replacement runes and simply count as high-codepoint characters).
func (s *Scorer) Score(text string) Assessment {
	if strings.TrimSpace(text) == "" {
		return Assessment{}
	}

	lower := strings.ToLower(text)
	score := 0
	var flags []string

	for _, kw := range s.keywords {
		for n := strings.Count(lower, kw); n > 0; n-- {
			score += s.weights.Keyword
			flags = append(flags, "suspicious_keyword:"+kw)
		}
	}
	for _, p := range s.grooming {
		for n := strings.Count(lower, p); n > 0; n-- {
			score += s.weights.Grooming
			flags = append(flags, "grooming_pattern:"+p)
		}
	}
	if ease, ok := fleschReadingEase(text); ok && ease > s.weights.ReadabilityEase {
		score += s.weights.Readability
		flags = append(flags, "simple_language")
	}
	if highCodepointRatio(text) > s.weights.EmojiRatio {
		score += s.weights.Emoji
		flags = append(flags, "excessive_emojis")
	}
	for _, w := range s.pressure {
		for n := strings.Count(lower, w); n > 0; n-- {
			score += s.weights.Pressure
			flags = append(flags, "pressure_word:"+w)
		}
	}

	return Assessment{
		Score:      score,
		Flags:      flags,
		Suspicious: score > s.weights.SuspicionThreshold,
	}
}

// highCodepointRatio returns the fraction of runes outside printable ASCII.
// Emojis, pictographs, and decoding artifacts all land here.
func highCodepointRatio(text string) float64 {
	total, high := 0, 0
	for _, r := range text {
		total++
		if r > 127 {
			high++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(high) / float64(total)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(strings.ToLower(s)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
