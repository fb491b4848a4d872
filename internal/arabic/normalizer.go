package arabic

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	alef        = 'ا'
	alefMadda   = 'آ'
	alefHamza   = 'أ'
	alefHamzaLo = 'إ'
	tehMarbuta  = 'ة'
	heh         = 'ه'
	alefMaksura = 'ى'
	yeh         = 'ي'
)

// diacritics covers tanween, short vowels, shadda, sukun and the
// related marks, plus the superscript alef.
var diacritics = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
	},
}

// Normalize returns the canonical comparison form of raw: lowercased,
// diacritics stripped, letter variants unified, punctuation removed and
// stop words dropped. The result has no leading, trailing or repeated spaces.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := cases.Lower(language.Und).String(strings.TrimSpace(raw))
	text = unifyLetters(text)
	text = strings.Join(strings.Fields(text), " ")
	text = stripPunctuation(text)

	return strings.Join(removeStopWords(strings.Fields(text)), " ")
}

// Tokens returns the whitespace separated tokens of the normalized form of raw.
func Tokens(raw string) []string {
	return strings.Fields(Normalize(raw))
}

// unifyLetters removes diacritics and folds Alef, Teh Marbuta and
// Alef Maksura variants. The chain is rebuilt per call since
// transformers carry state between Transform calls.
func unifyLetters(text string) string {
	t := transform.Chain(
		runes.Remove(runes.In(diacritics)),
		runes.Map(foldLetter),
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

func foldLetter(r rune) rune {
	switch r {
	case alefMadda, alefHamza, alefHamzaLo:
		return alef
	case tehMarbuta:
		return heh
	case alefMaksura:
		return yeh
	}
	return r
}

// stripPunctuation keeps word characters and spaces only.
func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
}

func removeStopWords(tokens []string) []string {
	kept := tokens[:0]
	for _, token := range tokens {
		if IsStopWord(token) {
			continue
		}
		kept = append(kept, token)
	}
	return kept
}
