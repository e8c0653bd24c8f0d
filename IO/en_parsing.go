package IO

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TokenizeEN splits text into word and punctuation pieces after NFKC
// normalization and case folding. Apostrophes stay inside words ("don't").
func TokenizeEN(s string) []string {
	// Casers keep state, so one per call.
	s = cases.Fold().String(norm.NFKC.String(s))

	out := make([]string, 0, len(s)/4+1)
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
			word.WriteRune(r)
		case r == '\'' && word.Len() > 0:
			word.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			out = append(out, string(r))
		default:
			flush()
		}
	}
	flush()
	return out
}

// attachesLeft reports punctuation that is rendered without a leading space.
func attachesLeft(tok string) bool {
	switch tok {
	case ".", ",", "!", "?", ";", ":", ")", "]", "}", "%", "'":
		return true
	}
	return false
}

// joinTokens renders word pieces back into a sentence.
func joinTokens(toks []string) string {
	var sb strings.Builder
	for _, t := range toks {
		if sb.Len() > 0 && !attachesLeft(t) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t)
	}
	return sb.String()
}
