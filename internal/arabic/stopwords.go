package arabic

import "sort"

// stopWordList holds high-frequency function words: prepositions,
// conjunctions, interrogatives, demonstratives and the bare article.
var stopWordList = []string{
	"في", "من", "إلى", "على", "عن", "مع", "هل", "ما", "ماذا", "كيف",
	"لماذا", "متى", "أين", "هذا", "هذه", "ذلك", "تلك", "التي", "الذي",
	"و", "أو", "ثم", "لكن", "أن", "إن", "لا", "نعم", "قد", "كان",
	"يكون", "كل", "بعض", "أي", "هناك", "هنا", "عند", "لدى", "ال",
}

// stopWords is keyed by the letter-folded spelling, since tokens are
// folded before they are looked up.
var stopWords = buildStopWords(stopWordList)

func buildStopWords(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[unifyLetters(w)] = struct{}{}
	}
	return set
}

// IsStopWord reports whether token, already normalized, is a stop word.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// StopWords returns the folded stop word set in sorted order.
func StopWords() []string {
	out := make([]string, 0, len(stopWords))
	for w := range stopWords {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
