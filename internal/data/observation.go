package data

// TransactionObservation is one card transaction: 28 anonymized PCA
// components, the transaction amount and whether it was fraud.
type TransactionObservation struct {
	Label  bool
	V      [NumAnonymizedFeatures]float32
	Amount float32
}

// Features returns V1..V28 followed by Amount.
func (o TransactionObservation) Features() []float64 {
	out := make([]float64, 0, NumAnonymizedFeatures+1)
	for _, v := range o.V {
		out = append(out, float64(v))
	}
	return append(out, float64(o.Amount))
}

// TransactionFraudPrediction is the model output for one observation.
type TransactionFraudPrediction struct {
	PredictedLabel bool
	Score          float32 // raw boosted margin
	Probability    float32
}

// TakeWhere returns up to n observations matching pred, in input order.
func TakeWhere(obs []TransactionObservation, pred func(TransactionObservation) bool, n int) []TransactionObservation {
	var out []TransactionObservation
	for _, o := range obs {
		if len(out) >= n {
			break
		}
		if pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// TakeByLabel returns the first n observations with the given label.
func TakeByLabel(obs []TransactionObservation, label bool, n int) []TransactionObservation {
	return TakeWhere(obs, func(o TransactionObservation) bool { return o.Label == label }, n)
}
