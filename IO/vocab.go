package IO

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Tokenizer turns text into model token ids and back.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) string
	VocabSize() int
	TokenID(tok string) (int, bool)
}

// Special tokens kept at the start of the vocab
const (
	PadToken = "<pad>"
	BOSToken = "<bos>"
	EOSToken = "<eos>"
	UnkToken = "<unk>"
)

var special = []string{PadToken, BOSToken, EOSToken, UnkToken}

var _ Tokenizer = Vocabulary{}

var ErrVocabNotInitialized = errors.New("vocab is not initialized; load or build vocab first")

// Vocabulary is a word-level vocabulary. IDs 0..3 are the special tokens.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

// BuildVocabulary counts TokenizeEN pieces over sentences and keeps the most
// frequent ones (ties broken lexically) seen at least minCount times, up to
// maxSize entries including the special tokens.
func BuildVocabulary(sentences []string, minCount, maxSize int) Vocabulary {
	counts := make(map[string]int, 1<<10)
	for _, s := range sentences {
		for _, t := range TokenizeEN(s) {
			counts[t]++
		}
	}
	return buildFixedVocabFromCounts(counts, minCount, maxSize)
}

func buildFixedVocabFromCounts(cnt map[string]int, minCount, size int) Vocabulary {
	type kv struct {
		k string
		v int
	}
	arr := make([]kv, 0, len(cnt))
	for k, v := range cnt {
		arr = append(arr, kv{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v == arr[j].v {
			return arr[i].k < arr[j].k
		}
		return arr[i].v > arr[j].v
	})

	idToToken := append([]string{}, special...)
	tok2id := make(map[string]int, len(arr)+len(special))
	for i, t := range idToToken {
		tok2id[t] = i
	}
	for _, p := range arr {
		if size > 0 && len(idToToken) >= size {
			break
		}
		if p.v < minCount || p.k == "" {
			continue
		}
		if _, dup := tok2id[p.k]; dup {
			continue
		}
		tok2id[p.k] = len(idToToken)
		idToToken = append(idToToken, p.k)
	}
	return Vocabulary{TokenToID: tok2id, IDToToken: idToToken}
}

// VocabLookup maps tok to its id, or to <unk>.
func VocabLookup(v Vocabulary, tok string) int {
	if id, ok := v.TokenToID[tok]; ok {
		return id
	}
	return v.TokenToID[UnkToken]
}

func (v Vocabulary) VocabSize() int { return len(v.IDToToken) }

func (v Vocabulary) TokenID(tok string) (int, bool) {
	id, ok := v.TokenToID[tok]
	return id, ok
}

// Encode maps text to ids; unknown words become <unk>. No BOS/EOS is added.
func (v Vocabulary) Encode(text string) ([]int, error) {
	if len(v.IDToToken) == 0 {
		return nil, ErrVocabNotInitialized
	}
	toks := TokenizeEN(text)
	ids := make([]int, len(toks))
	for i, t := range toks {
		ids[i] = VocabLookup(v, t)
	}
	return ids, nil
}

// Decode renders ids as text, dropping special tokens and ids outside the vocab.
func (v Vocabulary) Decode(ids []int) string {
	toks := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < len(special) || id >= len(v.IDToToken) {
			continue
		}
		toks = append(toks, v.IDToToken[id])
	}
	return joinTokens(toks)
}

func ExportVocabJSON(path string, v Vocabulary) error {
	if len(v.IDToToken) == 0 {
		return ErrVocabNotInitialized
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data := map[string]any{
		"TokenToID": v.TokenToID,
		"IDToToken": v.IDToToken,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ImportVocabJSON loads a vocab written by ExportVocabJSON. TokenToID is
// rebuilt from IDToToken so the two can never disagree.
func ImportVocabJSON(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Vocabulary{}, err
	}
	defer f.Close()
	var data struct {
		TokenToID map[string]int `json:"TokenToID"`
		IDToToken []string       `json:"IDToToken"`
	}
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return Vocabulary{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(data.IDToToken) < len(special) {
		return Vocabulary{}, fmt.Errorf("%s: %w", path, ErrVocabNotInitialized)
	}
	for i, s := range special {
		if data.IDToToken[i] != s {
			return Vocabulary{}, fmt.Errorf("%s: id %d is %q, want %q", path, i, data.IDToToken[i], s)
		}
	}
	tok2id := make(map[string]int, len(data.IDToToken))
	for i, t := range data.IDToToken {
		tok2id[t] = i
	}
	return Vocabulary{TokenToID: tok2id, IDToToken: data.IDToToken}, nil
}
