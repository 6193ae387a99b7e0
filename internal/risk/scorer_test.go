package risk

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ScorerSuite struct {
	suite.Suite
	scorer *Scorer
}

func TestScorerSuite(t *testing.T) {
	suite.Run(t, new(ScorerSuite))
}

func (s *ScorerSuite) SetupTest() {
	s.scorer = New(
		Weights{
			Keyword:            10,
			Grooming:           25,
			Readability:        5,
			ReadabilityEase:    90,
			Emoji:              15,
			EmojiRatio:         0.30,
			Pressure:           8,
			SuspicionThreshold: 20,
		},
		Lexicon{
			SuspiciousKeywords: []string{"webcam", "gift card", "cash"},
			GroomingPhrases:    []string{"you can trust me", "are you alone"},
			PressureWords:      []string{"hurry", "right now"},
		},
	)
}

func (s *ScorerSuite) TestEmptyText() {
	for _, text := range []string{"", "   ", "\n\t "} {
		a := s.scorer.Score(text)
		s.Zero(a.Score)
		s.Empty(a.Flags)
		s.False(a.Suspicious)
	}
}

func (s *ScorerSuite) TestDeterminism() {
	const text = "you can trust me, just hurry and get a gift card"
	first := s.scorer.Score(text)
	second := s.scorer.Score(text)
	s.Equal(first, second)
}

// Threshold behavior: one grooming phrase alone crosses the threshold, two
// ordinary keywords land exactly on it (not flagged), three cross it.
func (s *ScorerSuite) TestThreshold() {
	s.Run("single grooming phrase scores 25 and is flagged", func() {
		a := s.scorer.Score("you can trust me")
		s.Equal(25, a.Score)
		s.Equal([]string{"grooming_pattern:you can trust me"}, a.Flags)
		s.True(a.Suspicious)
	})

	s.Run("two keywords score 20 and are not flagged", func() {
		a := s.scorer.Score("webcam gift card")
		s.Equal(20, a.Score)
		s.Len(a.Flags, 2)
		s.False(a.Suspicious)
	})

	s.Run("three keywords score 30 and are flagged", func() {
		a := s.scorer.Score("webcam gift card cash")
		s.Equal(30, a.Score)
		s.Len(a.Flags, 3)
		s.True(a.Suspicious)
	})
}

func (s *ScorerSuite) TestKeywordMatching() {
	s.Run("case-insensitive substring match", func() {
		a := s.scorer.Score("WEBCAM")
		s.Equal(10, a.Score)
		s.Equal([]string{"suspicious_keyword:webcam"}, a.Flags)
	})

	s.Run("repeated occurrences score per occurrence", func() {
		a := s.scorer.Score("cash cash cash")
		s.Equal(30, a.Score)
		s.Equal([]string{
			"suspicious_keyword:cash",
			"suspicious_keyword:cash",
			"suspicious_keyword:cash",
		}, a.Flags)
	})
}

func (s *ScorerSuite) TestPressureWords() {
	a := s.scorer.Score("hurry")
	s.Equal(8, a.Score)
	s.Equal([]string{"pressure_word:hurry"}, a.Flags)
	s.False(a.Suspicious)
}

func (s *ScorerSuite) TestSimpleLanguage() {
	// Long enough to measure, trivially easy to read.
	a := s.scorer.Score("I like you. You are so fun. We can play.")
	s.Equal(5, a.Score)
	s.Equal([]string{"simple_language"}, a.Flags)
	s.False(a.Suspicious)
}

func (s *ScorerSuite) TestShortTextSkipsReadability() {
	a := s.scorer.Score("hi there")
	s.Zero(a.Score)
	s.Empty(a.Flags)
}

func (s *ScorerSuite) TestExcessiveEmojis() {
	a := s.scorer.Score("hi \U0001F600\U0001F600\U0001F600\U0001F600")
	s.Equal(15, a.Score)
	s.Contains(a.Flags, "excessive_emojis")
}

func (s *ScorerSuite) TestAdditiveSignals() {
	// Five simple words: grooming (25) + pressure (8) + simple language (5).
	a := s.scorer.Score("you can trust me, hurry")
	s.Equal(38, a.Score)
	s.Contains(a.Flags, "grooming_pattern:you can trust me")
	s.Contains(a.Flags, "pressure_word:hurry")
	s.Contains(a.Flags, "simple_language")
	s.True(a.Suspicious)
}

func (s *ScorerSuite) TestMalformedUnicode() {
	s.NotPanics(func() {
		s.scorer.Score(string([]byte{0xff, 0xfe, 'h', 'i', 0xc3}))
	})
}

func TestFleschReadingEase(t *testing.T) {
	t.Run("too short to measure", func(t *testing.T) {
		_, ok := fleschReadingEase("just four short words")
		if ok {
			t.Fatal("expected fragments below the word minimum to be unmeasurable")
		}
	})

	t.Run("simple prose is very easy", func(t *testing.T) {
		ease, ok := fleschReadingEase("I like you. You are so fun. We can play.")
		if !ok {
			t.Fatal("expected measurable text")
		}
		if ease <= 90 {
			t.Fatalf("expected ease > 90, got %.2f", ease)
		}
	})

	t.Run("dense prose is harder", func(t *testing.T) {
		ease, ok := fleschReadingEase(
			"Comprehensive verification infrastructure necessitates deliberate architectural consideration regarding cryptographic implementation strategies.")
		if !ok {
			t.Fatal("expected measurable text")
		}
		if ease >= 90 {
			t.Fatalf("expected ease < 90, got %.2f", ease)
		}
	})
}
