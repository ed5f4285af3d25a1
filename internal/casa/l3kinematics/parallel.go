package l3kinematics

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l2tracks"
)

// ComputeAll computes every track's kinematics on up to workers
// goroutines (workers < 1 selects GOMAXPROCS). out[i] belongs to tracks[i]
// and is nil when the track's kinematics are undefined. The call returns
// only after every computation has finished.
func ComputeAll(ctx context.Context, tracks []*l2tracks.Track, calib casa.Calibration, opts Options, workers int) ([]*TrackKinematics, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]*TrackKinematics, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, track := range tracks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = casa.Errorf(casa.StageKinematics, casa.KindInternal, "track %d: panic: %v", track.TrackID, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			if k, ok := Compute(track.Points, calib, opts); ok {
				out[i] = &k
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, casa.NewError(casa.StageKinematics, casa.KindCancelled, ctxErr)
		}
		return nil, casa.AsAnalysisError(err, casa.StageKinematics)
	}
	return out, nil
}
