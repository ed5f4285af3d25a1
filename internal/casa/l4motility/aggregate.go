package l4motility

import (
	"gonum.org/v1/gonum/stat"

	"github.com/you112ef/Sky-CASA/internal/casa/l3kinematics"
)

// AggregateMetrics is the run-level reduction of all tracks. A mean of 0
// with KinematicTracks == 0 means "nothing to average", not a measured
// zero.
type AggregateMetrics struct {
	MeanVCL float64 `json:"mean_vcl"`
	MeanVSL float64 `json:"mean_vsl"`
	MeanVAP float64 `json:"mean_vap"`
	MeanALH float64 `json:"mean_alh"`
	MeanBCF float64 `json:"mean_bcf"`
	MeanLIN float64 `json:"mean_lin"`
	MeanSTR float64 `json:"mean_str"`
	MeanWOB float64 `json:"mean_wob"`
	MeanMAD float64 `json:"mean_mad"`

	TotalTracks     int `json:"total_tracks"`
	KinematicTracks int `json:"kinematic_tracks"`
	Progressive     int `json:"progressive"`
	NonProgressive  int `json:"non_progressive"`
	Immotile        int `json:"immotile"`

	ProgressivePct    float64 `json:"progressive_pct"`
	NonProgressivePct float64 `json:"non_progressive_pct"`
	ImmotilePct       float64 `json:"immotile_pct"`
}

// Motile returns the count of progressive plus non-progressive tracks.
func (a AggregateMetrics) Motile() int { return a.Progressive + a.NonProgressive }

// Classified pairs a track's kinematics with its class. A nil Kinematics
// marks a track whose kinematics were undefined; it counts towards
// TotalTracks but not towards any mean or class.
type Classified struct {
	Kinematics *l3kinematics.TrackKinematics
	Class      Class
}

// Aggregate reduces classified tracks into run metrics.
func Aggregate(tracks []Classified) AggregateMetrics {
	agg := AggregateMetrics{TotalTracks: len(tracks)}

	var vcl, vsl, vap, alh, bcf, lin, str, wob, mad []float64
	for _, tr := range tracks {
		k := tr.Kinematics
		if k == nil {
			continue
		}
		agg.KinematicTracks++
		vcl = append(vcl, k.VCL)
		vsl = append(vsl, k.VSL)
		vap = append(vap, k.VAP)
		alh = append(alh, k.ALH)
		bcf = append(bcf, k.BCF)
		lin = append(lin, k.LIN)
		str = append(str, k.STR)
		wob = append(wob, k.WOB)
		mad = append(mad, k.MAD)

		switch tr.Class {
		case ClassProgressive:
			agg.Progressive++
		case ClassNonProgressive:
			agg.NonProgressive++
		case ClassImmotile:
			agg.Immotile++
		}
	}

	agg.MeanVCL = mean(vcl)
	agg.MeanVSL = mean(vsl)
	agg.MeanVAP = mean(vap)
	agg.MeanALH = mean(alh)
	agg.MeanBCF = mean(bcf)
	agg.MeanLIN = mean(lin)
	agg.MeanSTR = mean(str)
	agg.MeanWOB = mean(wob)
	agg.MeanMAD = mean(mad)

	if agg.TotalTracks > 0 {
		total := float64(agg.TotalTracks)
		agg.ProgressivePct = float64(agg.Progressive) / total * 100
		agg.NonProgressivePct = float64(agg.NonProgressive) / total * 100
		agg.ImmotilePct = float64(agg.Immotile) / total * 100
	}
	return agg
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
