// Package model is a single-layer next-token predictor: frozen token
// embeddings, parameter-free attention pooling and a linear output layer
// trained online with guarded SGD.
//
// A Model is not safe for concurrent use. Callers serialize Predict and Train.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/mat"

	"github.com/Big-First/NinfaBot-sub000/utils"
)

// ErrInvalidSize is returned by New for a non-positive vocabulary or embedding size.
var ErrInvalidSize = errors.New("model: vocabulary and embedding sizes must be positive")

// ErrInvalidLearningRate is returned by New when WithLearningRate was given a
// non-positive or non-finite value.
var ErrInvalidLearningRate = errors.New("model: learning rate must be positive and finite")

// DefaultLearningRate is the SGD step used when WithLearningRate is not given.
const DefaultLearningRate = 0.001

// Model holds the embedding table and the trainable output layer.
type Model struct {
	vocabSize int // V
	embSize   int // D
	maxSeqLen int // hint only
	lr        float64

	emb  *mat.Dense // (V x D), row i embeds token i; never written after New
	outW *mat.Dense // (D x V), column i produces logit i
	outB *mat.Dense // (V x 1)

	log   logr.Logger
	stats Stats
}

type options struct {
	src rand.Source
	lr  float64
	log logr.Logger
}

// Option configures New.
type Option func(*options)

// WithRandSource sets the generator used for weight initialization.
func WithRandSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// WithSeed is WithRandSource over a PCG generator seeded with seed.
func WithSeed(seed uint64) Option {
	return WithRandSource(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// WithLearningRate overrides DefaultLearningRate.
func WithLearningRate(lr float64) Option {
	return func(o *options) { o.lr = lr }
}

// WithLogger sets the sink for soft-failure events. Defaults to logr.Discard().
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

// New allocates and initializes a model over a vocabulary of vocabSize ids
// with embeddingSize-wide embeddings. maxSeqLen is kept as a hint for callers
// building prefixes; the model accepts sequences of any length.
func New(vocabSize, embeddingSize, maxSeqLen int, opts ...Option) (*Model, error) {
	if vocabSize <= 0 || embeddingSize <= 0 {
		return nil, fmt.Errorf("%w: vocabSize=%d embeddingSize=%d", ErrInvalidSize, vocabSize, embeddingSize)
	}
	o := options{lr: DefaultLearningRate, log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lr <= 0 || math.IsInf(o.lr, 0) || math.IsNaN(o.lr) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidLearningRate, o.lr)
	}

	m := &Model{
		vocabSize: vocabSize,
		embSize:   embeddingSize,
		maxSeqLen: maxSeqLen,
		lr:        o.lr,
		emb:       mat.NewDense(vocabSize, embeddingSize, utils.RandomArray(vocabSize, embeddingSize, o.src)),
		outW:      mat.NewDense(embeddingSize, vocabSize, utils.RandomArray(embeddingSize, vocabSize, o.src)),
		outB:      mat.NewDense(vocabSize, 1, nil),
		log:       o.log,
	}
	m.log.V(2).Info("model initialized",
		"vocabSize", vocabSize, "embeddingSize", embeddingSize, "maxSeqLen", maxSeqLen, "learningRate", o.lr)
	return m, nil
}

func (m *Model) VocabSize() int { return m.vocabSize }
func (m *Model) EmbeddingSize() int { return m.embSize }
func (m *Model) MaxSeqLen() int { return m.maxSeqLen }
func (m *Model) LearningRate() float64 { return m.lr }

// Stats returns a snapshot of the soft-failure and update counters.
func (m *Model) Stats() Stats { return m.stats }

// validIDs drops ids outside [0, V), preserving order.
func (m *Model) validIDs(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < m.vocabSize {
			out = append(out, id)
		}
	}
	return out
}
