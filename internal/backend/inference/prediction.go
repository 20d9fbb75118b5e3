package inference

import "math"

const (
	LabelRipe   = "Ripe"
	LabelUnripe = "Unripe"
)

// Output positions of the classifier.
const (
	unripeIndex = 0
	ripeIndex   = 1
)

type Prediction struct {
	Label      string  `json:"label"`
	RipeProb   float64 `json:"ripeProb"`
	UnripeProb float64 `json:"unripeProb"`
}

// NewPrediction reads the unripe and ripe scores from their positions; missing
// positions count as zero. Ripe only wins when strictly greater, so ties are Unripe.
func NewPrediction(scores []float64) Prediction {
	unripe := scoreAt(scores, unripeIndex)
	ripe := scoreAt(scores, ripeIndex)

	label := LabelUnripe
	if ripe > unripe {
		label = LabelRipe
	}
	return Prediction{
		Label:      label,
		RipeProb:   ripe,
		UnripeProb: unripe,
	}
}

// Accuracy is the score of the chosen label as a rounded percentage in [0, 100].
// Scores of models without a probability output are clamped.
func (p Prediction) Accuracy() int {
	prob := p.UnripeProb
	if p.Label == LabelRipe {
		prob = p.RipeProb
	}
	if math.IsNaN(prob) {
		return 0
	}
	return int(math.Round(min(max(prob, 0), 1) * 100))
}

func scoreAt(scores []float64, i int) float64 {
	if i >= len(scores) || math.IsNaN(scores[i]) {
		return 0
	}
	return scores[i]
}
