package ssim

// Metric is a similarity metric that can be differentiated. Both SSIM and
// MultiScale implement it.
type Metric interface {
	// Forward scores every sample pair of x and y.
	Forward(x, y *Batch) (Scored, error)
}

// Scored is the outcome of Metric.Forward.
type Scored interface {
	// Scores returns one similarity value per sample.
	Scores() []float64
	// Backward maps a gradient on the scores to gradients on both inputs.
	Backward(grad []float64) (gx, gy *Batch, err error)
}

// Loss returns the dissimilarity objective mean_n(1 - score_n) of pred
// against target together with its gradient with respect to pred.
func Loss(m Metric, pred, target *Batch) (float64, *Batch, error) {
	r, err := m.Forward(pred, target)
	if err != nil {
		return 0, nil, err
	}
	scores := r.Scores()
	n := float64(len(scores))

	var loss float64
	for _, s := range scores {
		loss += 1 - s
	}
	loss /= n

	grad := make([]float64, len(scores))
	for i := range grad {
		grad[i] = -1 / n
	}
	gx, _, err := r.Backward(grad)
	if err != nil {
		return 0, nil, err
	}
	return loss, gx, nil
}
