package risk

import (
	"strings"
	"unicode"
)

// fleschMinWords gates the readability heuristic: reading-ease values for
// fragments shorter than this are statistically meaningless and would make
// every short message look "suspiciously simple".
const fleschMinWords = 5

// fleschReadingEase computes the Flesch reading-ease score:
//
//	206.835 - 1.015*(words/sentences) - 84.6*(syllables/words)
//
// Higher means easier to read; values above ~90 indicate very simple
// language. Returns ok=false when the text is too short to measure.
func fleschReadingEase(text string) (float64, bool) {
	words := splitWords(text)
	if len(words) < fleschMinWords {
		return 0, false
	}

	sentences := countSentences(text)
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	asl := float64(len(words)) / float64(sentences)
	asw := float64(syllables) / float64(len(words))
	return 206.835 - 1.015*asl - 84.6*asw, true
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func countSentences(text string) int {
	n := 0
	inTerminator := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inTerminator {
				n++
				inTerminator = true
			}
		default:
			inTerminator = false
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// countSyllables estimates syllables by counting vowel groups, discounting a
// silent trailing 'e'. Good enough for a readability heuristic; exact
// dictionaries are not the point here.
func countSyllables(word string) int {
	w := strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range w {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
