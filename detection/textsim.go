package detection

import "strings"

// stopwords are dropped before token matching; they carry no signal for
// telling two civic reports apart.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"on": true, "at": true, "in": true, "of": true, "to": true,
	"and": true, "or": true, "for": true, "with": true, "by": true,
	"near": true, "there": true, "it": true, "this": true, "that": true,
}

// TextSimilarity scores how alike two report texts are, 0-100. Identical
// strings score 100 and the score is symmetric. Matching is token based
// with fuzzy equality (prefix and small edit distance) so common
// abbreviations like "St" vs "Street" still count.
func TextSimilarity(a, b string) float64 {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}

	ta, tb := tokenize(na), tokenize(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	matched := 0
	for _, t := range ta {
		if matchesAny(t, tb) {
			matched++
		}
	}
	for _, t := range tb {
		if matchesAny(t, ta) {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(ta)+len(tb))
}

// normalizeText lowercases, strips punctuation and collapses whitespace.
func normalizeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if !stopwords[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func matchesAny(token string, others []string) bool {
	for _, o := range others {
		if tokensMatch(token, o) {
			return true
		}
	}
	return false
}

// tokensMatch is a symmetric fuzzy equality: exact, abbreviation prefix,
// or a small edit distance for longer words.
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= 2 && len(b) >= 2 {
		if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
			return true
		}
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	switch {
	case shorter >= 8:
		return levenshtein(a, b) <= 2
	case shorter >= 5:
		return levenshtein(a, b) <= 1
	}
	return false
}

// levenshtein computes the edit distance with the usual two-row DP.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
