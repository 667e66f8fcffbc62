package guardrails

import (
	"regexp"
	"strings"
	"unicode"
)

var hashtagExpr = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// emojiRanges covers the pictographic blocks counted toward platform caps.
var emojiRanges = [][2]rune{
	{0x1F1E0, 0x1F1FF}, // regional indicators (flags)
	{0x1F300, 0x1F5FF}, // symbols & pictographs
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F680, 0x1F6FF}, // transport & map symbols
	{0x1F700, 0x1F77F},
	{0x1F780, 0x1F7FF},
	{0x1F800, 0x1F8FF},
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1FA00, 0x1FA6F},
	{0x1FA70, 0x1FAFF},
	{0x2702, 0x27B0}, // dingbats
	{0x2600, 0x26FF}, // miscellaneous symbols
}

// ExtractHashtags returns every #tag token in order of appearance.
func ExtractHashtags(text string) []string {
	return hashtagExpr.FindAllString(text, -1)
}

// CountHashtags counts #tag tokens.
func CountHashtags(text string) int {
	return len(hashtagExpr.FindAllString(text, -1))
}

// CountEmojis counts runes falling into the emoji blocks.
func CountEmojis(text string) int {
	count := 0
	for _, r := range text {
		for _, rng := range emojiRanges {
			if r >= rng[0] && r <= rng[1] {
				count++
				break
			}
		}
	}
	return count
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// AlphaRatio returns the fraction of runes that are letters.
func AlphaRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, alpha := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	return float64(alpha) / float64(total)
}

// UppercaseRatio returns the fraction of letters that are uppercase, along
// with the total letter count so callers can skip short texts.
func UppercaseRatio(text string) (float64, int) {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(upper) / float64(letters), letters
}

// LongestRun returns the length of the longest run of one repeated
// non-whitespace rune.
func LongestRun(text string) int {
	var prev rune
	run, longest := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			prev, run = 0, 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// RepetitionRatio measures vocabulary reuse: 1 - unique/total words.
// Texts under ten words report zero.
func RepetitionRatio(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 10 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return 1 - float64(len(unique))/float64(len(words))
}

// DetectLanguage guesses between cyrillic and latin dominated text.
func DetectLanguage(text string) string {
	cyrillic, latin := 0, 0
	for _, r := range text {
		if r >= 0x0400 && r <= 0x04FF {
			cyrillic++
		} else if unicode.IsLetter(r) {
			latin++
		}
	}
	switch {
	case cyrillic > latin:
		return "ru"
	case latin > cyrillic:
		return "en"
	}
	return "unknown"
}
