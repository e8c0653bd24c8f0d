package training

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Big-First/NinfaBot-sub000/IO"
)

//go:embed data/examples.txt
var examplesTxt string

var ErrNoPairs = errors.New("no training pairs")

// Pair is one online training example: predict Next after Prefix.
type Pair struct {
	Prefix []int
	Next   int
}

// DefaultSentences returns the built-in example conversation corpus.
func DefaultSentences() []string {
	s, err := IO.ReadSentences(strings.NewReader(examplesTxt))
	if err != nil {
		panic(fmt.Sprintf("embedded corpus: %v", err))
	}
	return s
}

// EncodeSentence encodes s and wraps it in <bos>/<eos> when the tokenizer
// knows those tokens.
func EncodeSentence(tok IO.Tokenizer, s string) ([]int, error) {
	body, err := tok.Encode(s)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(body)+2)
	if bos, ok := tok.TokenID(IO.BOSToken); ok {
		ids = append(ids, bos)
	}
	ids = append(ids, body...)
	if eos, ok := tok.TokenID(IO.EOSToken); ok {
		ids = append(ids, eos)
	}
	return ids, nil
}

// EncodeTurn encodes one exchange as <bos> prompt <eos> reply <eos>, so the
// pairs after the first <eos> teach the reply given the prompt.
func EncodeTurn(tok IO.Tokenizer, prompt, reply string) ([]int, error) {
	ids, err := EncodeSentence(tok, prompt)
	if err != nil {
		return nil, err
	}
	body, err := tok.Encode(reply)
	if err != nil {
		return nil, err
	}
	ids = append(ids, body...)
	if eos, ok := tok.TokenID(IO.EOSToken); ok {
		ids = append(ids, eos)
	}
	return ids, nil
}

// Pairs emits (ids[:k], ids[k]) for every k>=1. A positive maxSeqLen keeps
// only the trailing maxSeqLen ids of each prefix.
func Pairs(ids []int, maxSeqLen int) []Pair {
	if len(ids) < 2 {
		return nil
	}
	out := make([]Pair, 0, len(ids)-1)
	for k := 1; k < len(ids); k++ {
		start := 0
		if maxSeqLen > 0 && k > maxSeqLen {
			start = k - maxSeqLen
		}
		prefix := make([]int, k-start)
		copy(prefix, ids[start:k])
		out = append(out, Pair{Prefix: prefix, Next: ids[k]})
	}
	return out
}

// BuildDialogPairs reads sentences as alternating prompt/reply lines. A
// trailing unpaired line is trained on as a plain sentence.
func BuildDialogPairs(tok IO.Tokenizer, sentences []string, maxSeqLen int) ([]Pair, error) {
	var out []Pair
	for i := 0; i < len(sentences); i += 2 {
		var (
			ids []int
			err error
		)
		if i+1 < len(sentences) {
			ids, err = EncodeTurn(tok, sentences[i], sentences[i+1])
		} else {
			ids, err = EncodeSentence(tok, sentences[i])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		out = append(out, Pairs(ids, maxSeqLen)...)
	}
	if len(out) == 0 {
		return nil, ErrNoPairs
	}
	return out, nil
}

// BuildPairs encodes every sentence and concatenates their pairs.
func BuildPairs(tok IO.Tokenizer, sentences []string, maxSeqLen int) ([]Pair, error) {
	var out []Pair
	for i, s := range sentences {
		ids, err := EncodeSentence(tok, s)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		out = append(out, Pairs(ids, maxSeqLen)...)
	}
	if len(out) == 0 {
		return nil, ErrNoPairs
	}
	return out, nil
}
