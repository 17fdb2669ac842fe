package usecase

import (
	"fmt"
	"math"
	"sort"

	"facequant/internal/domain"
	"facequant/internal/similarity"
)

// DistanceStats summarises a set of pairwise distances.
type DistanceStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// CalibrationReport describes how well a threshold separates genuine pairs
// (same label) from impostor pairs (different labels).
type CalibrationReport struct {
	Genuine            DistanceStats `json:"genuine"`
	Impostor           DistanceStats `json:"impostor"`
	Threshold          float64       `json:"threshold"`
	FalseAcceptRate    float64       `json:"false_accept_rate"`
	FalseRejectRate    float64       `json:"false_reject_rate"`
	SuggestedThreshold float64       `json:"suggested_threshold"`
	SuggestedFAR       float64       `json:"suggested_false_accept_rate"`
	SuggestedFRR       float64       `json:"suggested_false_reject_rate"`
}

// Calibrate computes all pairwise distances between samples and evaluates
// threshold against them. It also suggests the threshold minimising
// FAR + FRR, choosing midpoints between observed distances.
func Calibrate(samples []domain.LabeledEmbedding, threshold float64) (*CalibrationReport, error) {
	var genuine, impostor []float64

	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			d, err := similarity.Euclidean(samples[i].Vector, samples[j].Vector)
			if err != nil {
				return nil, fmt.Errorf("%s vs %s: %w", samples[i].Source, samples[j].Source, err)
			}
			if samples[i].Label == samples[j].Label {
				genuine = append(genuine, d)
			} else {
				impostor = append(impostor, d)
			}
		}
	}

	if len(genuine) == 0 {
		return nil, fmt.Errorf("need at least two samples of one label")
	}
	if len(impostor) == 0 {
		return nil, fmt.Errorf("need samples of at least two labels")
	}

	sort.Float64s(genuine)
	sort.Float64s(impostor)

	report := &CalibrationReport{
		Genuine:   stats(genuine),
		Impostor:  stats(impostor),
		Threshold: threshold,
	}
	report.FalseAcceptRate, report.FalseRejectRate = rates(genuine, impostor, threshold)

	best := math.Inf(1)
	for _, t := range candidateThresholds(genuine, impostor) {
		far, frr := rates(genuine, impostor, t)
		if far+frr < best {
			best = far + frr
			report.SuggestedThreshold = t
			report.SuggestedFAR = far
			report.SuggestedFRR = frr
		}
	}

	return report, nil
}

func stats(sorted []float64) DistanceStats {
	var sum float64
	for _, d := range sorted {
		sum += d
	}
	return DistanceStats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / float64(len(sorted)),
	}
}

// rates returns the false accept and false reject rates for a strict
// distance < threshold match rule. Both inputs must be sorted.
func rates(genuine, impostor []float64, threshold float64) (far, frr float64) {
	accepted := sort.SearchFloat64s(impostor, threshold)
	acceptedGenuine := sort.SearchFloat64s(genuine, threshold)
	far = float64(accepted) / float64(len(impostor))
	frr = float64(len(genuine)-acceptedGenuine) / float64(len(genuine))
	return far, frr
}

func candidateThresholds(genuine, impostor []float64) []float64 {
	all := make([]float64, 0, len(genuine)+len(impostor))
	all = append(all, genuine...)
	all = append(all, impostor...)
	sort.Float64s(all)

	var out []float64
	for i := 0; i+1 < len(all); i++ {
		if all[i] == all[i+1] {
			continue
		}
		if mid := (all[i] + all[i+1]) / 2; mid > 0 {
			out = append(out, mid)
		}
	}
	out = append(out, all[len(all)-1]+1)
	return out
}
