package hgsgd

// A ConstRater is a Rater which always returns the same
// constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(epoch float64) float64 {
	return float64(c)
}

// A WarmupRater ramps the learning rate up linearly over
// the first fraction of training, then holds it constant.
type WarmupRater struct {
	// Rate is the learning rate after warmup.
	Rate float64

	// Warmup is the fraction of Epochs spent warming up.
	// A value of 0 disables warmup.
	Warmup float64

	// Epochs is the total number of training epochs.
	Epochs float64
}

// Rate returns the learning rate for the epoch.
func (w *WarmupRater) Rate(epoch float64) float64 {
	warmupEpochs := w.Warmup * w.Epochs
	if warmupEpochs <= 0 || epoch >= warmupEpochs {
		return w.Rate
	}
	// Never return a zero rate, even for the first step.
	progress := (epoch + warmupEpochs/100) / warmupEpochs
	if progress > 1 {
		progress = 1
	}
	return w.Rate * progress
}
