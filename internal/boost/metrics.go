package boost

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Metrics are the standard binary-classification scores at a 0.5
// probability threshold, plus threshold-free AUCs.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"roc_auc"`
	PRAUC     float64 `json:"pr_auc"`
}

// Evaluate computes all metrics for true labels y and predicted
// probabilities probs.
func Evaluate(y, probs []float64) Metrics {
	var tp, fp, tn, fn float64
	for i := range y {
		pred := probs[i] >= 0.5
		pos := y[i] == 1
		switch {
		case pred && pos:
			tp++
		case pred && !pos:
			fp++
		case !pred && !pos:
			tn++
		default:
			fn++
		}
	}

	m := Metrics{
		ROCAUC: ROCAUC(y, probs),
		PRAUC:  PRAUC(y, probs),
	}
	if total := tp + fp + tn + fn; total > 0 {
		m.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// ROCAUC returns the area under the ROC curve, or 0.5 when the labels
// are single-class.
func ROCAUC(y, probs []float64) float64 {
	scores, classes, ok := sortedScores(y, probs)
	if !ok {
		return 0.5
	}
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// PRAUC returns the area under the precision-recall curve, or 0 when
// there are no positives.
func PRAUC(y, probs []float64) float64 {
	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(y))
	var totalPos float64
	for i := range y {
		pairs[i] = pair{score: probs[i], pos: y[i] == 1}
		if pairs[i].pos {
			totalPos++
		}
	}
	if totalPos == 0 {
		return 0
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	var tp, fp, auc, prevRecall float64
	for i := 0; i < len(pairs); {
		// Process ties as one block.
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			if pairs[j].pos {
				tp++
			} else {
				fp++
			}
			j++
		}
		recall := tp / totalPos
		precision := tp / (tp + fp)
		auc += (recall - prevRecall) * precision
		prevRecall = recall
		i = j
	}
	return auc
}

// sortedScores prepares label/score pairs for stat.ROC, which requires
// scores in ascending order. ok is false for single-class labels.
func sortedScores(y, probs []float64) (scores []float64, classes []bool, ok bool) {
	scores = make([]float64, len(probs))
	classes = make([]bool, len(y))
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	var pos, neg int
	for i, id := range idx {
		scores[i] = probs[id]
		classes[i] = y[id] == 1
		if classes[i] {
			pos++
		} else {
			neg++
		}
	}
	return scores, classes, pos > 0 && neg > 0
}
