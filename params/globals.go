package params

import (
	"errors"
	"fmt"
)

// TrainingConfig holds every tunable of the binary; main binds flags onto Config.
type TrainingConfig struct {
	// Core model parameters
	EmbeddingSize int     // D
	MaxSeqLen     int     // prefix hint; the model itself never enforces it
	LearningRate  float64 // plain SGD step on the output layer

	// Vocabulary
	MinCount int // drop words seen fewer times than this
	MaxVocab int // cap on |V| including special tokens

	// Training loop
	MaxEpochs int     // maximum number of passes over the pairs
	Patience  int     // epochs without loss improvement before stopping
	Epsilon   float64 // stop if mean loss < epsilon
	Seed      uint64  // drives init and shuffling
	Dialog    bool    // corpus lines alternate prompt/reply; false trains each line alone

	// Serving
	MaxTokens int    // generation cap per reply
	Addr      string // listen / dial address

	// Files (empty = built-in corpus, fresh vocab)
	CorpusPath    string
	VocabPath     string
	TokenizerPath string // HuggingFace tokenizer.json; overrides the word vocab
}

var Config = TrainingConfig{
	EmbeddingSize: 16,
	MaxSeqLen:     8,
	LearningRate:  0.001,

	MinCount: 1,
	MaxVocab: 4096,

	MaxEpochs: 200,
	Patience:  10,
	Epsilon:   1e-3,
	Seed:      42,
	Dialog:    true,

	MaxTokens: 20,
	Addr:      "127.0.0.1:8000",
}

// Validate rejects configs the model constructor would refuse, plus loop
// settings that make no sense.
func (c TrainingConfig) Validate() error {
	var errs []error
	if c.EmbeddingSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding size must be positive, got %d", c.EmbeddingSize))
	}
	if c.MaxSeqLen <= 0 {
		errs = append(errs, fmt.Errorf("max sequence length must be positive, got %d", c.MaxSeqLen))
	}
	if c.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning rate must be positive, got %g", c.LearningRate))
	}
	if c.MaxVocab < 5 {
		errs = append(errs, fmt.Errorf("max vocab must leave room past the 4 special tokens, got %d", c.MaxVocab))
	}
	if c.MaxEpochs < 0 {
		errs = append(errs, fmt.Errorf("max epochs must not be negative, got %d", c.MaxEpochs))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens))
	}
	return errors.Join(errs...)
}
