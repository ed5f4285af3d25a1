package l2tracks

import "math"

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackOpen      TrackState = "open"      // Still accepting detections
	TrackFinalized TrackState = "finalized" // End of input, long enough for kinematics
	TrackDiscarded TrackState = "discarded" // End of input, too short
)

// Point is a centroid in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Track is the reconstructed trajectory of one object. Points holds one
// centroid per matched frame in temporal order; frames without a match are
// not filled, so len(Points) may be smaller than the frame span.
type Track struct {
	TrackID    int        `json:"track_id"`
	StartFrame int        `json:"start_frame"`
	EndFrame   int        `json:"end_frame"`
	Points     []Point    `json:"points"`
	Areas      []float64  `json:"areas"`
	State      TrackState `json:"state"`
}

// Len returns the number of centroids.
func (t *Track) Len() int { return len(t.Points) }

// Last returns the most recent centroid.
func (t *Track) Last() Point { return t.Points[len(t.Points)-1] }

// FrameSpan returns EndFrame-StartFrame+1.
func (t *Track) FrameSpan() int { return t.EndFrame - t.StartFrame + 1 }

// Clone returns a deep copy.
func (t *Track) Clone() *Track {
	c := *t
	c.Points = append([]Point(nil), t.Points...)
	c.Areas = append([]float64(nil), t.Areas...)
	return &c
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// withinGate reports whether q lies strictly inside the per-axis gate of p.
func withinGate(p, q Point, gate float64) bool {
	return math.Abs(q.X-p.X) < gate && math.Abs(q.Y-p.Y) < gate
}
