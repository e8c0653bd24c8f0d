package model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Big-First/NinfaBot-sub000/utils"
)

// StepResult tells a caller whether a guarded parameter step landed.
type StepResult int

const (
	StepApplied StepResult = iota
	StepReverted
)

func (r StepResult) String() string {
	switch r {
	case StepApplied:
		return "applied"
	case StepReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Stats counts Train/Predict outcomes.
type Stats struct {
	Updates          int // Train calls that reached the update loop
	EmptyInputs      int // calls whose sequence had no valid id
	BadTargets       int // Train calls with target outside [0, V)
	NonFinitePasses  int // forward passes or gradients aborted on NaN/Inf
	SoftmaxFallbacks int
	BiasReverts      int
	WeightReverts    int
	GradientCutoffs  int // neurons whose weight loop stopped on a non-finite weight gradient
}

// applyStep does p[i,j] -= delta and puts the old value back if the result is
// NaN or ±Inf.
func applyStep(p mat.Mutable, i, j int, delta float64) StepResult {
	old := p.At(i, j)
	p.Set(i, j, old-delta)
	if !utils.IsFinite(p.At(i, j)) {
		p.Set(i, j, old)
		return StepReverted
	}
	return StepApplied
}

// Train takes one SGD step on the output layer toward target given the
// prefix ids. Embeddings and pooling are left alone. Empty or all-invalid
// input, an out-of-range target and any non-finite forward value make the
// call a logged no-op.
func (m *Model) Train(ids []int, target int) {
	valid := m.validIDs(ids)
	if len(valid) == 0 {
		m.stats.EmptyInputs++
		m.log.V(1).Info("skipping update: no valid token ids", "given", len(ids))
		return
	}
	if target < 0 || target >= m.vocabSize {
		m.stats.BadTargets++
		m.log.V(1).Info("skipping update: target out of range", "target", target, "vocabSize", m.vocabSize)
		return
	}
	fp, err := m.forward(valid)
	if err != nil {
		m.stats.NonFinitePasses++
		m.log.V(1).Info("skipping update: forward pass aborted", "err", err.Error())
		return
	}

	// dL/dlogits for softmax + cross-entropy: probs - onehot(target)
	grad := utils.OneHot(m.vocabSize, target)
	floats.SubTo(grad, fp.probs, grad)
	if !utils.AllFinite(grad) {
		m.stats.NonFinitePasses++
		m.log.V(1).Info("skipping update: non-finite logit gradient", "target", target)
		return
	}

	m.stats.Updates++
	m.update(fp.context, grad)
	m.log.V(4).Info("update applied", "tokens", len(valid), "target", target, "p_target", fp.probs[target])
}

// update applies the per-neuron guarded step. A bad bias skips that neuron;
// a bad weight gradient or weight stops that neuron's remaining dimensions.
func (m *Model) update(context, grad []float64) {
	for i, g := range grad {
		if applyStep(m.outB, i, 0, m.lr*g) == StepReverted {
			m.stats.BiasReverts++
			m.log.V(1).Info("bias update reverted", "neuron", i)
			continue
		}
		for j, c := range context {
			wg := c * g
			if !utils.IsFinite(wg) {
				m.stats.GradientCutoffs++
				m.log.V(1).Info("weight gradient not finite, skipping rest of neuron", "neuron", i, "dim", j)
				break
			}
			if applyStep(m.outW, j, i, m.lr*wg) == StepReverted {
				m.stats.WeightReverts++
				m.log.V(1).Info("weight update reverted", "neuron", i, "dim", j)
				break
			}
		}
	}
}
