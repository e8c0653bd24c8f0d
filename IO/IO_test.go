package IO

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeEN(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", ",", "world", "!"}},
		{"  don't   stop ", []string{"don't", "stop"}},
		{"ＡＢＣ 123", []string{"abc", "123"}}, // full-width folded by NFKC
		{"Hi-there", []string{"hi", "-", "there"}},
		{"", []string{}},
	}
	for _, tc := range cases {
		got := TokenizeEN(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("TokenizeEN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildVocabulary(t *testing.T) {
	v := BuildVocabulary([]string{"b a a", "c a b", "d"}, 1, 0)
	want := []string{PadToken, BOSToken, EOSToken, UnkToken, "a", "b", "c", "d"}
	if !reflect.DeepEqual(v.IDToToken, want) {
		t.Fatalf("IDToToken = %q, want %q", v.IDToToken, want)
	}
	for i, tok := range v.IDToToken {
		if v.TokenToID[tok] != i {
			t.Fatalf("TokenToID[%q] = %d, want %d", tok, v.TokenToID[tok], i)
		}
	}

	capped := BuildVocabulary([]string{"b a a", "c a b", "d"}, 2, 0)
	if got := capped.IDToToken[4:]; !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("minCount=2 kept %q", got)
	}
	small := BuildVocabulary([]string{"b a a", "c a b", "d"}, 1, 5)
	if small.VocabSize() != 5 || small.IDToToken[4] != "a" {
		t.Fatalf("maxSize=5 gave %q", small.IDToToken)
	}
}

func TestEncodeDecode(t *testing.T) {
	v := BuildVocabulary([]string{"hello there, friend!"}, 1, 0)
	ids, err := v.Encode("Hello friend, stranger!")
	if err != nil {
		t.Fatal(err)
	}
	unk := v.TokenToID[UnkToken]
	if ids[len(ids)-2] != unk {
		t.Fatalf("stranger should map to <unk>, got %v", ids)
	}
	bos, _ := v.TokenID(BOSToken)
	eos, _ := v.TokenID(EOSToken)
	withSpecials := append([]int{bos}, ids...)
	withSpecials = append(withSpecials, eos, 999, -1)
	if got := v.Decode(withSpecials); got != "hello friend,!" {
		t.Fatalf("Decode = %q", got)
	}
}

func TestEncodeWithoutVocab(t *testing.T) {
	if _, err := (Vocabulary{}).Encode("hi"); !errors.Is(err, ErrVocabNotInitialized) {
		t.Fatalf("want ErrVocabNotInitialized, got %v", err)
	}
}

func TestVocabJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vocab.json")
	v := BuildVocabulary([]string{"one two three two"}, 1, 0)
	if err := ExportVocabJSON(path, v); err != nil {
		t.Fatal(err)
	}
	got, err := ImportVocabJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, v)
	}
}

func TestImportVocabJSONRejectsBadSpecials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	body := `{"IDToToken": ["<bos>", "<pad>", "<eos>", "<unk>", "x"]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ImportVocabJSON(path); err == nil {
		t.Fatal("want error for swapped special tokens")
	}
}

func TestReadSentences(t *testing.T) {
	in := "# greetings\nhello there\n\n   \n  how are you?  \n"
	got, err := ReadSentences(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"hello there", "how are you?"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if _, err := ReadSentences(strings.NewReader("# only\n\n")); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("want ErrEmptyCorpus, got %v", err)
	}
}

func TestLoadSentences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte("first line\nsecond line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSentences(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"first line", "second line"}) {
		t.Fatalf("got %q", got)
	}
	if _, err := LoadSentences(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestExportTokenIDsBinaryShards(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "ids", "train")
	seqs := [][]int{{1, 4, 5, 2}, {}, {1, 6, 2}, {1, 70000, 2}}

	// 16 bytes per shard: the first sequence fills shard 0 on its own and
	// the last two close shard 1 exactly at the limit.
	n, err := ExportTokenIDsBinary(prefix, seqs, 16)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("shards = %d, want 2", n)
	}
	var got [][]int
	for s := 0; s < n; s++ {
		part, err := ReadTokenIDsBinary(prefix, s)
		if err != nil {
			t.Fatalf("shard %d: %v", s, err)
		}
		got = append(got, part...)
	}
	want := [][]int{{1, 4, 5, 2}, {1, 6, 2}, {1, 70000, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if _, err := os.Stat(ShardPath(prefix, 2, ".bin")); !os.IsNotExist(err) {
		t.Fatalf("unexpected trailing shard: %v", err)
	}
}

func TestExportTokenIDsBinaryFullLastShard(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "one")
	n, err := ExportTokenIDsBinary(prefix, [][]int{{1, 2, 3, 4}}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("shards = %d, want 1", n)
	}
	if _, err := os.Stat(ShardPath(prefix, 1, ".idx")); !os.IsNotExist(err) {
		t.Fatalf("empty shard 1 was written: %v", err)
	}

	// no sequences still leaves a readable, empty shard 0
	empty := filepath.Join(t.TempDir(), "empty")
	if n, err := ExportTokenIDsBinary(empty, [][]int{{}}, 16); err != nil || n != 1 {
		t.Fatalf("empty export = %d, %v", n, err)
	}
	seqs, err := ReadTokenIDsBinary(empty, 0)
	if err != nil || len(seqs) != 0 {
		t.Fatalf("empty shard = %v, %v", seqs, err)
	}
}

func TestReadTokenIDsBinaryRejectsCorruptIndex(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "bad")
	if _, err := ExportTokenIDsBinary(prefix, [][]int{{1, 2}}, 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ShardPath(prefix, 0, ".bin"), []byte{1, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTokenIDsBinary(prefix, 0); !errors.Is(err, ErrCorruptShard) {
		t.Fatalf("want ErrCorruptShard, got %v", err)
	}

	entries := []struct {
		name       string
		start, len uint64
	}{
		{"length overflows 4*n", 0, 1 << 62},
		{"length wraps negative", 0, 1 << 63},
		{"offset past end", 8, 0},
		{"offset wraps negative", 1 << 63, 1},
	}
	for _, e := range entries {
		idx := make([]byte, 16)
		binary.LittleEndian.PutUint64(idx[:8], e.start)
		binary.LittleEndian.PutUint64(idx[8:], e.len)
		if err := os.WriteFile(ShardPath(prefix, 0, ".idx"), idx, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadTokenIDsBinary(prefix, 0); !errors.Is(err, ErrCorruptShard) {
			t.Fatalf("%s: want ErrCorruptShard, got %v", e.name, err)
		}
	}
}

func TestPretrainedTokenizer(t *testing.T) {
	p, err := LoadPretrained(filepath.Join("testdata", "tokenizer.json"))
	if err != nil {
		t.Fatal(err)
	}
	ids, err := p.Encode("Hello friends")
	if err != nil {
		t.Fatal(err)
	}
	var want []int
	for _, tok := range []string{"hello", "friend", "##s"} {
		id, ok := p.TokenID(tok)
		if !ok {
			t.Fatalf("TokenID(%q) missing", tok)
		}
		want = append(want, id)
	}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("Encode = %v, want %v", ids, want)
	}
	if got := p.Decode(ids); got != "hello friends" {
		t.Fatalf("Decode = %q, want %q", got, "hello friends")
	}

	// the model vocab has 13 entries; every encoded id must fit the size
	// the model is built with
	if p.VocabSize() < 13 {
		t.Fatalf("VocabSize = %d, want >= 13", p.VocabSize())
	}
	for _, id := range ids {
		if id < 0 || id >= p.VocabSize() {
			t.Fatalf("id %d outside VocabSize %d", id, p.VocabSize())
		}
	}
	for _, special := range []string{BOSToken, EOSToken} {
		if _, ok := p.TokenID(special); ok {
			t.Fatalf("fixture unexpectedly has %s", special)
		}
	}

	if _, err := LoadPretrained(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("want error for missing tokenizer file")
	}
}
