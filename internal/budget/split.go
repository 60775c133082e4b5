package budget

import (
	"strings"
	"unicode"
)

// SplitPolicy halves an oversize unit at a natural boundary. It returns
// the two halves and whether a boundary was found; callers fall back to a
// fixed stride otherwise.
type SplitPolicy func(text string) (left, right string, ok bool)

// sentenceEnders terminate a sentence in the scripts we handle. CJK full
// stops need no trailing space.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
	'；': true,
}

// SplitSentences splits at the sentence boundary nearest the midpoint of
// the text. A boundary is a sentence-ending rune followed by whitespace
// (or any CJK ender). Both halves are guaranteed non-empty.
func SplitSentences(text string) (string, string, bool) {
	runes := []rune(text)
	if len(runes) < 2 {
		return "", "", false
	}

	mid := len(runes) / 2
	best := -1
	bestDist := len(runes)

	for i := 0; i < len(runes)-1; i++ {
		r := runes[i]
		if !sentenceEnders[r] {
			continue
		}
		// Latin enders need following whitespace to avoid splitting
		// inside "3.14" or "e.g.".
		if r < 0x2000 && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		dist := abs(i - mid)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	if best < 0 || best+1 >= len(runes) {
		return "", "", false
	}

	left := strings.TrimRight(string(runes[:best+1]), " \t")
	right := strings.TrimLeft(string(runes[best+1:]), " \t")
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
