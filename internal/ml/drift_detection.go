package ml

import (
	"fmt"
	"math"
	"sort"

	"creditcard-fraud/internal/data"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// DefaultDriftThreshold is the PSI above which a feature is reported.
const DefaultDriftThreshold = 0.25

const (
	psiBins    = 10
	psiEpsilon = 1e-4
)

// FeatureDrift compares the distribution of one feature between a baseline
// and a current sample.
type FeatureDrift struct {
	Feature        string  `json:"feature"`
	PSI            float64 `json:"psi"` // Population Stability Index
	KSStatistic    float64 `json:"ks_statistic"`
	BaselineMean   float64 `json:"baseline_mean"`
	CurrentMean    float64 `json:"current_mean"`
	Severity       string  `json:"severity,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// DriftReport holds the drift of every compared feature.
type DriftReport struct {
	Threshold float64        `json:"threshold"`
	Features  []FeatureDrift `json:"features"`
}

// Drifted returns the features whose PSI exceeds the threshold.
func (r *DriftReport) Drifted() []FeatureDrift {
	var out []FeatureDrift
	for _, f := range r.Features {
		if f.PSI > r.Threshold {
			out = append(out, f)
		}
	}
	return out
}

// ComputeDrift compares baseline and current for every named feature and
// logs a warning for each drifted one. A non-positive threshold selects
// DefaultDriftThreshold.
func ComputeDrift(baseline, current *data.DataView, features []string, threshold float64) (*DriftReport, error) {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	report := &DriftReport{Threshold: threshold}

	for _, name := range features {
		b, err := baseline.Scalar(name)
		if err != nil {
			return nil, fmt.Errorf("drift baseline: %w", err)
		}
		c, err := current.Scalar(name)
		if err != nil {
			return nil, fmt.Errorf("drift current: %w", err)
		}
		bs, cs := sortedFinite(b), sortedFinite(c)
		if len(bs) == 0 || len(cs) == 0 {
			continue
		}

		fd := FeatureDrift{
			Feature:      name,
			PSI:          populationStabilityIndex(bs, cs),
			KSStatistic:  stat.KolmogorovSmirnov(bs, nil, cs, nil),
			BaselineMean: stat.Mean(bs, nil),
			CurrentMean:  stat.Mean(cs, nil),
		}
		if fd.PSI > threshold {
			fd.Severity = driftSeverity(fd.PSI, threshold)
			fd.Recommendation = driftRecommendation(fd.Severity, name)
			log.Warn().
				Str("feature", name).
				Float64("psi", fd.PSI).
				Float64("ks", fd.KSStatistic).
				Str("severity", fd.Severity).
				Msg("Feature drift detected between train and test data")
		}
		report.Features = append(report.Features, fd)
	}
	return report, nil
}

func sortedFinite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// populationStabilityIndex bins both samples on the baseline deciles.
// Empty bins are smoothed with psiEpsilon.
func populationStabilityIndex(baseline, current []float64) float64 {
	var edges []float64
	for i := 1; i < psiBins; i++ {
		q := stat.Quantile(float64(i)/psiBins, stat.Empirical, baseline, nil)
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}

	bp := binShares(baseline, edges)
	cp := binShares(current, edges)
	psi := 0.0
	for i := range bp {
		b := math.Max(bp[i], psiEpsilon)
		c := math.Max(cp[i], psiEpsilon)
		psi += (c - b) * math.Log(c/b)
	}
	return psi
}

func binShares(sorted, edges []float64) []float64 {
	shares := make([]float64, len(edges)+1)
	for _, v := range sorted {
		shares[sort.SearchFloat64s(edges, v)]++
	}
	for i := range shares {
		shares[i] /= float64(len(sorted))
	}
	return shares
}

func driftSeverity(score, threshold float64) string {
	switch {
	case score > threshold*3:
		return "critical"
	case score > threshold*2:
		return "high"
	default:
		return "medium"
	}
}

func driftRecommendation(severity, feature string) string {
	switch severity {
	case "critical":
		return fmt.Sprintf("CRITICAL: Feature '%s' shows severe drift. Re-split the dataset before trusting test metrics.", feature)
	case "high":
		return fmt.Sprintf("HIGH: Feature '%s' shows significant drift. Consider a stratified split.", feature)
	default:
		return fmt.Sprintf("MEDIUM: Feature '%s' shows moderate drift. Monitor closely.", feature)
	}
}
