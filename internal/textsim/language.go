package textsim

import (
	"unicode"

	"golang.org/x/text/language"
)

// scriptLanguages maps dominant scripts onto a representative base language.
// Script detection is only a routing hint: when two texts disagree here they
// are translated to the pivot language, and the provider's own detection
// replaces the guess in the reported match.
var scriptLanguages = []struct {
	ranges *unicode.RangeTable
	tag    language.Tag
}{
	{unicode.Cyrillic, language.Russian},
	{unicode.Han, language.Chinese},
	{unicode.Arabic, language.Arabic},
	{unicode.Devanagari, language.Hindi},
	{unicode.Hangul, language.Korean},
	{unicode.Hiragana, language.Japanese},
	{unicode.Katakana, language.Japanese},
	{unicode.Greek, language.Greek},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Thai, language.Thai},
}

// DetectLanguage guesses the language of text from its dominant script and
// returns a BCP-47 code. Latin-script text maps to English; the provider's
// detected_language corrects this downstream when it matters.
func DetectLanguage(text string) string {
	counts := make(map[int]int, len(scriptLanguages))
	latin := 0
	for _, r := range text {
		if unicode.In(r, unicode.Latin) {
			latin++
			continue
		}
		for i, sl := range scriptLanguages {
			if unicode.In(r, sl.ranges) {
				counts[i]++
				break
			}
		}
	}

	best, bestCount := -1, latin
	for i, n := range counts {
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	if best < 0 {
		return language.English.String()
	}
	return scriptLanguages[best].tag.String()
}

// SameLanguage reports whether two BCP-47 codes share a base language.
func SameLanguage(a, b string) bool {
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	return baseA == baseB
}
