package l2tracks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l1detections"
	"github.com/you112ef/Sky-CASA/internal/config"
	"github.com/you112ef/Sky-CASA/internal/testutil"
)

func det(x, y float64) l1detections.Detection {
	return l1detections.Detection{X: x, Y: y, Area: testutil.DefaultArea}
}

func frame(idx int, dets ...l1detections.Detection) l1detections.Frame {
	return l1detections.Frame{Index: idx, Detections: dets}
}

func cfgWith(mode AssociationMode, minLen int) TrackerConfig {
	cfg := DefaultTrackerConfig()
	cfg.Association = mode
	cfg.MinTrackLength = minLen
	return cfg
}

func runTracker(t *testing.T, cfg TrackerConfig, frames ...l1detections.Frame) *Tracker {
	t.Helper()
	tr := NewTracker(cfg, nil)
	for _, f := range frames {
		require.NoError(t, tr.Update(f))
	}
	tr.Finalize()
	return tr
}

func TestGating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		dx, dy float64
		linked bool
	}{
		{"15px linked", 15, 0, true},
		{"25px not linked", 25, 0, false},
		{"exactly gate not linked", 20, 0, false},
		{"per-axis gate allows diagonal", 15, 15, true},
		{"y axis outside", 0, 21, false},
		{"negative direction", -19.9, -19.9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := runTracker(t, cfgWith(AssociationGreedy, 1),
				frame(0, det(100, 100)),
				frame(1, det(100+tt.dx, 100+tt.dy)),
			)
			if tt.linked {
				require.Len(t, tr.Tracks, 1)
				assert.Equal(t, 2, tr.Tracks[0].Len())
				assert.Equal(t, 0, tr.Tracks[0].StartFrame)
				assert.Equal(t, 1, tr.Tracks[0].EndFrame)
			} else {
				require.Len(t, tr.Tracks, 2)
				assert.Equal(t, 1, tr.Tracks[0].Len())
				assert.Equal(t, 1, tr.Tracks[1].StartFrame)
			}
		})
	}
}

func TestMinTrackLengthFilter(t *testing.T) {
	t.Parallel()

	long := testutil.Path(0, testutil.StraightLine(5, 0, 0, 10, 0)...)
	short := testutil.Path(0, testutil.StraightLine(4, 300, 300, 5, 0)...)

	tracks, stats, err := Associate(context.Background(), testutil.Merge(long, short), DefaultTrackerConfig(), nil)
	require.NoError(t, err)

	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].TrackID)
	assert.Equal(t, 5, tracks[0].Len())
	assert.Equal(t, TrackFinalized, tracks[0].State)
	for _, tr := range tracks {
		assert.GreaterOrEqual(t, tr.Len(), DefaultMinTrackLength)
	}

	assert.Equal(t, 5, stats.Frames)
	assert.Equal(t, 9, stats.Detections)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 1, stats.Finalized)
	assert.Equal(t, 1, stats.Discarded)
}

func TestGapsAreNotFilled(t *testing.T) {
	t.Parallel()

	tr := runTracker(t, cfgWith(AssociationGreedy, 1),
		frame(0, det(10, 10)),
		frame(3, det(12, 10)),
		frame(7, det(14, 10)),
	)
	require.Len(t, tr.Tracks, 1)
	track := tr.Tracks[0]
	assert.Equal(t, 3, track.Len())
	assert.Equal(t, 8, track.FrameSpan())
	assert.Equal(t, []float64{testutil.DefaultArea, testutil.DefaultArea, testutil.DefaultArea}, track.Areas)
}

func TestExtendedAtMostOncePerFrame(t *testing.T) {
	t.Parallel()

	for _, mode := range []AssociationMode{AssociationGreedy, AssociationNearest, AssociationHungarian} {
		t.Run(string(mode), func(t *testing.T) {
			tr := runTracker(t, cfgWith(mode, 1),
				frame(0, det(50, 50)),
				frame(1, det(52, 50), det(55, 50)),
			)
			require.Len(t, tr.Tracks, 2)
			assert.Equal(t, 2, tr.Tracks[0].Len())
			assert.Equal(t, 1, tr.Tracks[1].Len())
			assert.Equal(t, 1, tr.Tracks[1].StartFrame)
		})
	}
}

func TestRepeatedFrameIndexContinuesFrame(t *testing.T) {
	t.Parallel()

	tr := runTracker(t, cfgWith(AssociationGreedy, 1),
		frame(0, det(50, 50)),
		frame(1, det(52, 50)),
		frame(1, det(53, 50)),
	)
	// The track already took a detection in frame 1.
	require.Len(t, tr.Tracks, 2)
	assert.Equal(t, []Point{{50, 50}, {52, 50}}, tr.Tracks[0].Points)
}

func TestGreedyFirstCreatedWins(t *testing.T) {
	t.Parallel()

	frames := []l1detections.Frame{
		frame(0, det(0, 0), det(30, 0)),
		frame(1, det(16, 0)),
	}

	greedy := runTracker(t, cfgWith(AssociationGreedy, 1), frames...)
	require.Len(t, greedy.Tracks, 2)
	assert.Equal(t, 2, greedy.GetTrack(1).Len(), "greedy links to the first-created track")
	assert.Equal(t, 1, greedy.GetTrack(2).Len())

	nearest := runTracker(t, cfgWith(AssociationNearest, 1), frames...)
	require.Len(t, nearest.Tracks, 2)
	assert.Equal(t, 1, nearest.GetTrack(1).Len())
	assert.Equal(t, 2, nearest.GetTrack(2).Len(), "nearest links to the closer track")
}

func TestNearestTieGoesToLowerID(t *testing.T) {
	t.Parallel()

	tr := runTracker(t, cfgWith(AssociationNearest, 1),
		frame(0, det(0, 0), det(20, 0)),
		frame(1, det(10, 0)),
	)
	assert.Equal(t, 2, tr.GetTrack(1).Len())
	assert.Equal(t, 1, tr.GetTrack(2).Len())
}

func TestCrossingAssignment(t *testing.T) {
	t.Parallel()

	frames := []l1detections.Frame{
		frame(0, det(0, 0), det(10, 0)),
		frame(1, det(6, 0), det(17, 0)),
	}

	tests := []struct {
		mode   AssociationMode
		first  []Point
		second []Point
	}{
		{AssociationGreedy, []Point{{0, 0}, {6, 0}}, []Point{{10, 0}, {17, 0}}},
		// Detection 1 grabs the closer track 2, leaving track 1 a 17 px jump.
		{AssociationNearest, []Point{{0, 0}, {17, 0}}, []Point{{10, 0}, {6, 0}}},
		{AssociationHungarian, []Point{{0, 0}, {6, 0}}, []Point{{10, 0}, {17, 0}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			tr := runTracker(t, cfgWith(tt.mode, 1), frames...)
			require.Len(t, tr.Tracks, 2)
			assert.Equal(t, tt.first, tr.GetTrack(1).Points)
			assert.Equal(t, tt.second, tr.GetTrack(2).Points)
		})
	}
}

func TestHungarianResolvesSwapGreedyMakes(t *testing.T) {
	t.Parallel()

	frames := []l1detections.Frame{
		frame(0, det(0, 0), det(10, 0)),
		frame(1, det(9, 0), det(1, 0)),
	}

	greedy := runTracker(t, cfgWith(AssociationGreedy, 1), frames...)
	assert.Equal(t, []Point{{0, 0}, {9, 0}}, greedy.GetTrack(1).Points)
	assert.Equal(t, []Point{{10, 0}, {1, 0}}, greedy.GetTrack(2).Points)

	hungarian := runTracker(t, cfgWith(AssociationHungarian, 1), frames...)
	assert.Equal(t, []Point{{0, 0}, {1, 0}}, hungarian.GetTrack(1).Points)
	assert.Equal(t, []Point{{10, 0}, {9, 0}}, hungarian.GetTrack(2).Points)
}

func TestHungarianRespectsGate(t *testing.T) {
	t.Parallel()

	tr := runTracker(t, cfgWith(AssociationHungarian, 1),
		frame(0, det(0, 0)),
		frame(1, det(40, 0)),
	)
	require.Len(t, tr.Tracks, 2)
	assert.Equal(t, 1, tr.GetTrack(1).Len())
}

func TestOutOfOrderFrames(t *testing.T) {
	t.Parallel()

	_, _, err := Associate(context.Background(), []l1detections.Frame{
		frame(2, det(1, 1)),
		frame(1, det(1, 1)),
	}, DefaultTrackerConfig(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, casa.ErrMalformedInput))

	var ae *casa.AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, casa.StageTracking, ae.Stage)
}

func TestNegativeFrameIndex(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultTrackerConfig(), nil)
	err := tr.Update(frame(-1, det(1, 1)))
	assert.ErrorIs(t, err, casa.ErrMalformedInput)
}

func TestCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Associate(ctx, testutil.Path(0, testutil.Stationary(5, 1, 1)...), DefaultTrackerConfig(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, casa.ErrCancelled)
}

func TestDeterminism(t *testing.T) {
	t.Parallel()

	frames := testutil.Merge(
		testutil.Path(0, testutil.StraightLine(12, 0, 0, 4, 1)...),
		testutil.Path(0, testutil.ZigZag(12, 5, 5, 3, 2)...),
		testutil.Path(2, testutil.Stationary(8, 200, 200)...),
	)

	for _, mode := range []AssociationMode{AssociationGreedy, AssociationNearest, AssociationHungarian} {
		t.Run(string(mode), func(t *testing.T) {
			a, sa, err := Associate(context.Background(), frames, cfgWith(mode, 5), nil)
			require.NoError(t, err)
			b, sb, err := Associate(context.Background(), frames, cfgWith(mode, 5), nil)
			require.NoError(t, err)
			assert.Equal(t, a, b)
			assert.Equal(t, sa, sb)
		})
	}
}

func TestMaxOpenTracks(t *testing.T) {
	t.Parallel()

	cfg := cfgWith(AssociationGreedy, 1)
	cfg.MaxOpenTracks = 2
	tr := runTracker(t, cfg,
		frame(0, det(0, 0), det(100, 0), det(200, 0)),
		frame(1, det(300, 0)),
	)
	assert.Len(t, tr.Tracks, 2)
	assert.Equal(t, 2, tr.Stats().Dropped)
}

func TestUpdateAfterFinalize(t *testing.T) {
	t.Parallel()

	tr := runTracker(t, DefaultTrackerConfig(), frame(0, det(1, 1)))
	err := tr.Update(frame(1, det(1, 1)))
	assert.ErrorIs(t, err, casa.ErrInternal)
	assert.Empty(t, tr.Finalize())
	assert.Equal(t, TrackDiscarded, tr.GetTrack(1).State)
	assert.Nil(t, tr.GetTrack(2))
}

func TestEmptyInput(t *testing.T) {
	t.Parallel()

	tracks, stats, err := Associate(context.Background(), nil, DefaultTrackerConfig(), nil)
	require.NoError(t, err)
	assert.Empty(t, tracks)
	assert.Equal(t, Stats{}, stats)
}

func TestParseAssociationMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]AssociationMode{
		"":          AssociationGreedy,
		"greedy":    AssociationGreedy,
		" Nearest ": AssociationNearest,
		"HUNGARIAN": AssociationHungarian,
	} {
		got, err := ParseAssociationMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAssociationMode("kalman")
	assert.Error(t, err)
}

func TestTrackerConfigFromTuning(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultTrackerConfig(), TrackerConfigFromTuning(nil))
	assert.Equal(t, DefaultTrackerConfig(), TrackerConfigFromTuning(config.EmptyTuningConfig()))

	tuned := config.EmptyTuningConfig().WithOverrides(config.Overrides{
		GatingDistancePx: 12,
		MinTrackLength:   3,
		AssociationMode:  "hungarian",
	})
	cfg := TrackerConfigFromTuning(tuned)
	assert.Equal(t, 12.0, cfg.GatingDistancePx)
	assert.Equal(t, 3, cfg.MinTrackLength)
	assert.Equal(t, AssociationHungarian, cfg.Association)

	bogus := "spline"
	cfg = TrackerConfigFromTuning(&config.TuningConfig{AssociationMode: &bogus})
	assert.Equal(t, AssociationMode("spline"), cfg.Association)
	assert.Error(t, cfg.Validate())
}

func TestTrackerConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultTrackerConfig().Validate())

	bad := []TrackerConfig{
		{GatingDistancePx: 0, MinTrackLength: 5},
		{GatingDistancePx: 20, MinTrackLength: 0},
		{GatingDistancePx: 20, MinTrackLength: 5, MaxOpenTracks: -1},
		{GatingDistancePx: 20, MinTrackLength: 5, Association: "bogus"},
	}
	for _, cfg := range bad {
		assert.Error(t, cfg.Validate(), "%+v", cfg)
	}

	_, _, err := Associate(context.Background(), nil, bad[0], nil)
	assert.ErrorIs(t, err, casa.ErrValidationFailure)
}

func TestTrackClone(t *testing.T) {
	t.Parallel()

	orig := &Track{TrackID: 1, Points: []Point{{1, 2}}, Areas: []float64{3}}
	c := orig.Clone()
	c.Points[0].X = 99
	c.Areas[0] = 99
	assert.Equal(t, 1.0, orig.Points[0].X)
	assert.Equal(t, 3.0, orig.Areas[0])
}

func TestHungarianScalesWithAccumulatedTracks(t *testing.T) {
	// Five far-apart cells per frame, none linkable: every detection opens
	// a track and none ever closes before the end of input.
	const frames, perFrame = 200, 5
	var input []l1detections.Frame
	for f := 0; f < frames; f++ {
		dets := make([]l1detections.Detection, perFrame)
		for k := range dets {
			dets[k] = det(float64((f*perFrame+k)*50)+10, 10)
		}
		input = append(input, frame(f, dets...))
	}

	start := time.Now()
	tracks, stats, err := Associate(context.Background(), input, cfgWith(AssociationHungarian, 1), nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, frames*perFrame, stats.Created)
	assert.Len(t, tracks, frames*perFrame)
	assert.Less(t, elapsed, 5*time.Second, "hungarian association must not grow with every open track")
}

// fullHungarian solves one frame over every eligible track at once.
func fullHungarian(tr *Tracker, f l1detections.Frame) []int {
	claimed := make([]bool, len(tr.Tracks))
	var candidates []int
	for idx := range tr.Tracks {
		if tr.eligible(idx, f.Index, claimed) {
			candidates = append(candidates, idx)
		}
	}
	out := make([]int, len(f.Detections))
	cost := make([][]float64, len(f.Detections))
	for di, d := range f.Detections {
		p := Point{X: d.X, Y: d.Y}
		cost[di] = make([]float64, len(candidates))
		for ci, idx := range candidates {
			last := tr.Tracks[idx].Last()
			if withinGate(last, p, tr.Config.GatingDistancePx) {
				cost[di][ci] = last.Distance(p)
			} else {
				cost[di][ci] = forbiddenCost
			}
		}
	}
	for di, ci := range hungarianAssign(cost) {
		out[di] = -1
		if ci >= 0 {
			out[di] = candidates[ci]
		}
	}
	return out
}

func TestHungarianComponentsMatchGlobalSolve(t *testing.T) {
	seeds := []l1detections.Detection{
		det(100, 100), det(108, 100), det(116, 101),
		det(500, 500), det(507, 505), det(514, 498),
	}
	for i := 0; i < 40; i++ {
		seeds = append(seeds, det(float64(1000+i*60), 900))
	}
	tr := NewTracker(cfgWith(AssociationHungarian, 1), nil)
	require.NoError(t, tr.Update(frame(0, seeds...)))

	next := frame(1,
		det(113, 102), det(104, 99), det(119, 100),
		det(511, 503), det(503, 499), det(517, 501),
		det(1062, 905), det(3000, 3000),
	)
	got := tr.associate(next)
	assert.Equal(t, fullHungarian(tr, next), got)
	assert.Equal(t, -1, got[7], "isolated detection starts a new track")
	assert.Equal(t, 7, got[6], "lone gated pair is linked directly")
}
