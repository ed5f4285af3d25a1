package l1detections

import "github.com/you112ef/Sky-CASA/internal/casa"

// Detection is one observed object in one frame, in pixel units.
type Detection struct {
	FrameIndex int     `json:"frame,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Area       float64 `json:"area"`
}

// Frame groups the detections observed in one frame. Detections within a
// frame carry no ordering meaning, but are processed in slice order so a
// given input always yields the same tracks.
type Frame struct {
	Index      int         `json:"index"`
	Detections []Detection `json:"detections"`
}

// SampleInfo is descriptive sample metadata echoed into the report.
type SampleInfo struct {
	ChamberType   string `json:"chamber_type,omitempty"`
	Magnification string `json:"magnification,omitempty"`
}

// Input is everything a single analysis run consumes.
type Input struct {
	SampleID    string                `json:"sample_id,omitempty"`
	Source      string                `json:"source,omitempty"` // video identifier
	Calibration casa.CalibrationInput `json:"calibration"`
	Sample      SampleInfo            `json:"sample"`
	Frames      []Frame               `json:"frames"`
}

// DetectionCount returns the number of detections across all frames.
func DetectionCount(frames []Frame) int {
	n := 0
	for _, f := range frames {
		n += len(f.Detections)
	}
	return n
}
