package IO

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// PretrainedTokenizer adapts a HuggingFace tokenizer.json to Tokenizer.
type PretrainedTokenizer struct {
	tk    *tk.Tokenizer
	vocab map[string]int
}

var _ Tokenizer = (*PretrainedTokenizer)(nil)

// LoadPretrained reads a tokenizer.json (BPE, WordPiece, ...) from disk.
func LoadPretrained(path string) (*PretrainedTokenizer, error) {
	t, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &PretrainedTokenizer{tk: t, vocab: t.GetVocab(true)}, nil
}

// Encode returns ids without the tokenizer's post-processing specials.
func (p *PretrainedTokenizer) Encode(text string) ([]int, error) {
	enc, err := p.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(enc.Ids))
	copy(out, enc.Ids)
	return out, nil
}

func (p *PretrainedTokenizer) Decode(ids []int) string {
	return p.tk.Decode(ids, true)
}

func (p *PretrainedTokenizer) VocabSize() int {
	return p.tk.GetVocabSize(true)
}

func (p *PretrainedTokenizer) TokenID(tok string) (int, bool) {
	id, ok := p.vocab[tok]
	return id, ok
}
