package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Big-First/NinfaBot-sub000/utils"
)

// Stage names the step of the forward pipeline that produced a value.
type Stage string

const (
	StageEmbedding     Stage = "embedding"
	StageContext       Stage = "context"
	StageOutputWeights Stage = "output weights"
	StageOutputBias    Stage = "output bias"
	StageLogits        Stage = "logits"
	StageProbabilities Stage = "probabilities"
)

// NonFiniteError reports a NaN or ±Inf met during a forward pass.
type NonFiniteError struct {
	Stage Stage
	Index int // row/token id for embeddings, vector index otherwise; -1 when unknown
}

func (e *NonFiniteError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("non-finite value in %s", e.Stage)
	}
	return fmt.Sprintf("non-finite value in %s at %d", e.Stage, e.Index)
}

// forwardPass keeps the intermediates Train needs.
type forwardPass struct {
	context []float64 // D
	logits  []float64 // V
	probs   []float64 // V
}

// Softmax returns the numerically-stable softmax of xs. When xs holds a
// non-finite value or the exponential sum is 0/NaN/Inf it returns the uniform
// distribution of the same length and ok=false.
func Softmax(xs []float64) (probs []float64, ok bool) {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out, true
	}
	if !utils.AllFinite(xs) {
		return utils.Uniform(len(xs)), false
	}
	mx := floats.Max(xs)
	for i, x := range xs {
		out[i] = math.Exp(x - mx)
	}
	sum := floats.Sum(out)
	if sum == 0 || !utils.IsFinite(sum) {
		return utils.Uniform(len(xs)), false
	}
	floats.Scale(1/sum, out)
	return out, true
}

// AttentionPool folds the embedding rows into one dim-wide context vector.
// Each row scores ||e||²/sqrt(dim); the softmax of the scores weights the sum.
// No rows gives the zero vector. ok is false when the score softmax fell back
// to uniform weights.
func AttentionPool(rows [][]float64, dim int) (context []float64, ok bool) {
	context = make([]float64, dim)
	if len(rows) == 0 {
		return context, true
	}
	scale := math.Sqrt(float64(dim))
	if scale == 0 {
		scale = 1
	}
	scores := make([]float64, len(rows))
	for k, e := range rows {
		scores[k] = floats.Dot(e, e) / scale
	}
	weights, ok := Softmax(scores)
	for k, e := range rows {
		floats.AddScaled(context, weights[k], e)
	}
	return context, ok
}

// embed returns the embedding rows for ids, which must already be valid.
// The rows alias the table and must not be written.
func (m *Model) embed(ids []int) ([][]float64, error) {
	rows := make([][]float64, len(ids))
	for k, id := range ids {
		row := m.emb.RawRowView(id)
		if !utils.AllFinite(row) {
			return nil, &NonFiniteError{Stage: StageEmbedding, Index: id}
		}
		rows[k] = row
	}
	return rows, nil
}

// project computes logits = Wᵀ·context + b after checking every parameter it reads.
func (m *Model) project(context []float64) ([]float64, error) {
	if !utils.DenseFinite(m.outW) {
		return nil, &NonFiniteError{Stage: StageOutputWeights, Index: -1}
	}
	if !utils.AllFinite(m.outB.RawMatrix().Data) {
		return nil, &NonFiniteError{Stage: StageOutputBias, Index: -1}
	}
	logits := mat.NewVecDense(m.vocabSize, nil)
	logits.MulVec(m.outW.T(), mat.NewVecDense(m.embSize, context))
	logits.AddVec(logits, m.outB.ColView(0))

	out := logits.RawVector().Data
	for i, v := range out {
		if !utils.IsFinite(v) {
			return nil, &NonFiniteError{Stage: StageLogits, Index: i}
		}
	}
	return out, nil
}

// forward runs embed → pool → project → softmax over already-filtered ids.
// It reads parameters only.
func (m *Model) forward(ids []int) (*forwardPass, error) {
	rows, err := m.embed(ids)
	if err != nil {
		return nil, err
	}
	context, ok := AttentionPool(rows, m.embSize)
	if !ok {
		m.stats.SoftmaxFallbacks++
		m.log.V(1).Info("attention scores fell back to uniform weights", "tokens", len(ids))
	}
	for j, v := range context {
		if !utils.IsFinite(v) {
			return nil, &NonFiniteError{Stage: StageContext, Index: j}
		}
	}
	logits, err := m.project(context)
	if err != nil {
		return nil, err
	}
	probs, ok := Softmax(logits)
	if !ok {
		m.stats.SoftmaxFallbacks++
		m.log.V(1).Info("logit softmax fell back to uniform distribution")
	}
	for i, p := range probs {
		if !utils.IsFinite(p) {
			return nil, &NonFiniteError{Stage: StageProbabilities, Index: i}
		}
	}
	return &forwardPass{context: context, logits: logits, probs: probs}, nil
}

// Predict returns the next-token distribution for ids. Out-of-range ids are
// ignored. An empty or all-invalid sequence, or any non-finite intermediate,
// yields the uniform distribution. Parameters are never modified.
func (m *Model) Predict(ids []int) []float64 {
	valid := m.validIDs(ids)
	if len(valid) == 0 {
		m.stats.EmptyInputs++
		m.log.V(4).Info("predict without valid token ids, returning uniform", "given", len(ids))
		return utils.Uniform(m.vocabSize)
	}
	fp, err := m.forward(valid)
	if err != nil {
		m.stats.NonFinitePasses++
		m.log.V(1).Info("forward pass aborted, returning uniform", "err", err.Error())
		return utils.Uniform(m.vocabSize)
	}
	return fp.probs
}
