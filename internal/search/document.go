package search

// Question is a single corpus entry. ID is supplied by the caller and is
// never interpreted by the index; the position in the corpus is the handle.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"question"`
}

// CharNgrams returns the character n-grams of text with lengths minN..maxN
// inclusive, counted in runes. Shorter n-grams come first.
func CharNgrams(text string, minN, maxN int) []string {
	if minN < 1 {
		minN = 1
	}
	chars := []rune(text)
	var grams []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(chars); i++ {
			grams = append(grams, string(chars[i:i+n]))
		}
	}
	return grams
}
