// Package l2tracks owns Layer 2 (Tracks) of the CASA data model.
//
// Responsibilities: frame-to-frame association of detections into tracks,
// track lifecycle (open, finalized, discarded) and the minimum-length
// filter applied at end of input.
// Key types: Track, Tracker, TrackerConfig.
//
// Association is strictly sequential across frames. Three strategies are
// available: greedy first-match (the default, first-created track wins),
// nearest-neighbour, and a per-frame globally optimal Hungarian
// assignment.
//
// Dependency rule: L2 may depend on L1 and the casa root package, never on
// L3 or above.
// No SQL/database code is allowed in this package.
package l2tracks
