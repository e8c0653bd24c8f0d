package chat

import (
	"context"

	"github.com/Big-First/NinfaBot-sub000/utils"
)

// Predictor is the read side of the model.
type Predictor interface {
	Predict(ids []int) []float64
}

// Generator decodes greedily: it always takes the most probable next id.
type Generator struct {
	Model     Predictor
	MaxSeqLen int // trailing window passed to Predict; <=0 passes everything
	EOS       int // stop token; negative when the tokenizer has none
}

// Generate extends prompt by up to maxTokens ids and returns only the new
// ids. Generation stops early at EOS, which is not included.
func (g *Generator) Generate(ctx context.Context, prompt []int, maxTokens int) ([]int, error) {
	ids := append([]int(nil), prompt...)
	out := make([]int, 0, maxTokens)
	for len(out) < maxTokens {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		window := ids
		if g.MaxSeqLen > 0 && len(window) > g.MaxSeqLen {
			window = window[len(window)-g.MaxSeqLen:]
		}
		next := utils.Argmax(g.Model.Predict(window))
		if next < 0 || (g.EOS >= 0 && next == g.EOS) {
			break
		}
		ids = append(ids, next)
		out = append(out, next)
	}
	return out, nil
}
