package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/Big-First/NinfaBot-sub000/IO"
	"github.com/Big-First/NinfaBot-sub000/chat"
	"github.com/Big-First/NinfaBot-sub000/model"
	"github.com/Big-First/NinfaBot-sub000/params"
	"github.com/Big-First/NinfaBot-sub000/training"
)

const (
	defaultVocabPath = "data/vocab.json"
	maxShardBytes    = 1 << 30
)

var (
	serveFlag  bool
	cliFlag    bool
	exportFlag bool
	idsPrefix  string
)

func init() {
	flag.BoolVar(&serveFlag, "serve", false, "Train on the corpus, then serve the chat API")
	flag.BoolVar(&cliFlag, "cli", false, "Run ChatCLI against a running chat server")
	flag.BoolVar(&exportFlag, "export", false, "Build the vocabulary from the corpus and write it as JSON")
	flag.StringVar(&idsPrefix, "ids", "", "With -export, also write the encoded corpus as binary shards under this prefix")

	c := &params.Config
	flag.StringVar(&c.CorpusPath, "corpus", c.CorpusPath, "Corpus file, one sentence per line (empty = built-in)")
	flag.StringVar(&c.VocabPath, "vocab", c.VocabPath, "Vocabulary JSON to load (or write with -export)")
	flag.StringVar(&c.TokenizerPath, "tokenizer", c.TokenizerPath, "HuggingFace tokenizer.json; replaces the word vocabulary")
	flag.StringVar(&c.Addr, "addr", c.Addr, "Chat server address")
	flag.Uint64Var(&c.Seed, "seed", c.Seed, "Seed for initialization and shuffling")
	flag.IntVar(&c.MaxEpochs, "epochs", c.MaxEpochs, "Maximum training epochs")
	flag.BoolVar(&c.Dialog, "dialog", c.Dialog, "Treat corpus lines as alternating prompt/reply turns")
	flag.IntVar(&c.Patience, "patience", c.Patience, "Epochs without improvement before stopping (0 = off)")
	flag.IntVar(&c.EmbeddingSize, "dim", c.EmbeddingSize, "Embedding size")
	flag.IntVar(&c.MaxSeqLen, "seq", c.MaxSeqLen, "Prefix window used for training and generation")
	flag.Float64Var(&c.LearningRate, "lr", c.LearningRate, "SGD learning rate for the output layer")
	flag.IntVar(&c.MaxTokens, "max-tokens", c.MaxTokens, "Maximum tokens per reply")
	flag.IntVar(&c.MinCount, "min-count", c.MinCount, "Minimum word count to enter the vocabulary")
	flag.IntVar(&c.MaxVocab, "max-vocab", c.MaxVocab, "Vocabulary size cap")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if err := params.Config.Validate(); err != nil {
		klog.Fatalf("invalid config: %v", err)
	}

	switch {
	case exportFlag:
		if err := export(); err != nil {
			klog.Fatalf("export: %v", err)
		}
	case cliFlag:
		ChatCLI(params.Config.Addr, params.Config.MaxTokens)
	case serveFlag:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serve(ctx); err != nil {
			klog.Fatalf("serve: %v", err)
		}
	default:
		fmt.Println("No flag passed. Use --serve to train and serve, --cli to chat, or --export to write the vocab.")
	}
}

func loadSentences() ([]string, error) {
	if params.Config.CorpusPath == "" {
		return training.DefaultSentences(), nil
	}
	return IO.LoadSentences(params.Config.CorpusPath)
}

// loadTokenizer prefers a pretrained tokenizer, then a saved vocab, then
// builds a fresh vocab from sentences.
func loadTokenizer(sentences []string) (IO.Tokenizer, error) {
	c := params.Config
	if c.TokenizerPath != "" {
		p, err := IO.LoadPretrained(c.TokenizerPath)
		if err != nil {
			return nil, err
		}
		klog.Infof("loaded tokenizer %s (%d tokens)", c.TokenizerPath, p.VocabSize())
		return p, nil
	}
	if c.VocabPath != "" && fileExists(c.VocabPath) {
		v, err := IO.ImportVocabJSON(c.VocabPath)
		if err != nil {
			return nil, err
		}
		klog.Infof("loaded vocab %s (%d tokens)", c.VocabPath, v.VocabSize())
		return v, nil
	}
	v := IO.BuildVocabulary(sentences, c.MinCount, c.MaxVocab)
	klog.Infof("built vocab from %d sentences (%d tokens)", len(sentences), v.VocabSize())
	return v, nil
}

func export() error {
	sentences, err := loadSentences()
	if err != nil {
		return err
	}
	path := params.Config.VocabPath
	if path == "" {
		path = defaultVocabPath
	}
	v := IO.BuildVocabulary(sentences, params.Config.MinCount, params.Config.MaxVocab)
	if err := IO.ExportVocabJSON(path, v); err != nil {
		return err
	}
	fmt.Printf("Exported %s (%d tokens)\n", path, v.VocabSize())

	if idsPrefix == "" {
		return nil
	}
	seqs := make([][]int, 0, len(sentences))
	for _, s := range sentences {
		ids, err := training.EncodeSentence(v, s)
		if err != nil {
			return err
		}
		seqs = append(seqs, ids)
	}
	shards, err := IO.ExportTokenIDsBinary(idsPrefix, seqs, maxShardBytes)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d sequences to %d shard(s) at %s\n", len(seqs), shards, idsPrefix)
	return nil
}

func serve(ctx context.Context) error {
	c := params.Config
	sentences, err := loadSentences()
	if err != nil {
		return err
	}
	tok, err := loadTokenizer(sentences)
	if err != nil {
		return err
	}

	m, err := model.New(tok.VocabSize(), c.EmbeddingSize, c.MaxSeqLen,
		model.WithSeed(c.Seed),
		model.WithLearningRate(c.LearningRate),
		model.WithLogger(klog.Background().WithName("model")),
	)
	if err != nil {
		return err
	}

	pairs, err := buildPairs(c.Dialog)(tok, sentences, m.MaxSeqLen())
	if err != nil {
		return err
	}
	tr := &training.Trainer{
		Model:     m,
		Pairs:     pairs,
		MaxEpochs: c.MaxEpochs,
		Patience:  c.Patience,
		Epsilon:   c.Epsilon,
		Rand:      rand.New(rand.NewPCG(c.Seed, c.Seed+1)),
		Log:       klog.Background().WithName("trainer"),
	}
	klog.Infof("training on %d pairs for up to %d epochs", len(pairs), c.MaxEpochs)
	reports, err := tr.Run(ctx)
	if err != nil {
		return err
	}
	if n := len(reports); n > 0 {
		last := reports[n-1]
		klog.Infof("trained %d epochs: loss %.4f, accuracy %.3f", n, last.Loss, last.Accuracy)
	}
	if klog.V(1).Enabled() {
		training.PlotAccuracy(os.Stderr, reports)
	}
	st := m.Stats()
	klog.Infof("updates=%d skipped(empty=%d target=%d non-finite=%d) reverts(bias=%d weight=%d)",
		st.Updates, st.EmptyInputs, st.BadTargets, st.NonFinitePasses, st.BiasReverts, st.WeightReverts)

	srv := chat.NewServer(m, tok, c.MaxTokens, klog.Background().WithName("chat"))
	return srv.ListenAndServe(ctx, c.Addr)
}

type pairBuilder func(tok IO.Tokenizer, sentences []string, maxSeqLen int) ([]training.Pair, error)

func buildPairs(dialog bool) pairBuilder {
	if dialog {
		return training.BuildDialogPairs
	}
	return training.BuildPairs
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
