package training

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-logr/logr"

	"github.com/Big-First/NinfaBot-sub000/utils"
)

// Learner is the model surface the training loop drives.
type Learner interface {
	Predict(ids []int) []float64
	Train(ids []int, target int)
}

// EpochReport summarizes one pass over the pairs. Loss and Accuracy are
// measured on each pair just before it is trained on.
type EpochReport struct {
	Epoch    int
	Loss     float64 // mean cross-entropy
	Accuracy float64 // greedy next-token hit rate
	Duration time.Duration
}

// Trainer runs epochs of online updates over Pairs.
type Trainer struct {
	Model Learner
	Pairs []Pair

	MaxEpochs int
	Patience  int     // epochs without a loss improvement before stopping; <=0 disables
	Epsilon   float64 // stop once the mean loss drops below this

	Rand *rand.Rand  // shuffles pairs each epoch; nil keeps the given order
	Log  logr.Logger // zero value discards
}

// Run trains until MaxEpochs, an early-stop condition, or ctx is done.
// It returns the reports of completed epochs and ctx.Err() if cancelled.
func (tr *Trainer) Run(ctx context.Context) ([]EpochReport, error) {
	if len(tr.Pairs) == 0 {
		return nil, ErrNoPairs
	}
	log := tr.Log

	order := make([]int, len(tr.Pairs))
	for i := range order {
		order[i] = i
	}

	var reports []EpochReport
	best := math.Inf(1)
	noImprovement := 0
	for e := 0; e < tr.MaxEpochs; e++ {
		start := time.Now()
		if tr.Rand != nil {
			tr.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var totalLoss float64
		hits := 0
		for _, idx := range order {
			if err := ctx.Err(); err != nil {
				return reports, err
			}
			p := tr.Pairs[idx]
			probs := tr.Model.Predict(p.Prefix)
			totalLoss += utils.CrossEntropy(probs, p.Next)
			if utils.Argmax(probs) == p.Next {
				hits++
			}
			tr.Model.Train(p.Prefix, p.Next)
		}

		rep := EpochReport{
			Epoch:    e,
			Loss:     totalLoss / float64(len(order)),
			Accuracy: float64(hits) / float64(len(order)),
			Duration: time.Since(start),
		}
		reports = append(reports, rep)
		log.V(1).Info("epoch done", "epoch", e, "loss", rep.Loss, "accuracy", rep.Accuracy, "took", rep.Duration)

		if rep.Loss < tr.Epsilon {
			log.Info("stopping early: loss below epsilon", "epoch", e, "loss", rep.Loss)
			break
		}
		if rep.Loss < best {
			best = rep.Loss
			noImprovement = 0
		} else {
			noImprovement++
		}
		if tr.Patience > 0 && noImprovement >= tr.Patience {
			log.Info("stopping early: no loss improvement", "epoch", e, "patience", tr.Patience)
			break
		}
	}
	return reports, nil
}
