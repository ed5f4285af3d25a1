// Package l4motility owns Layer 4 (Motility) of the CASA data model.
//
// Responsibilities: rule-based motility classification of a track from its
// linearity, and reduction of a run's tracks into aggregate metrics.
// Key types: Class, Thresholds, AggregateMetrics.
//
// Dependency rule: L4 may depend on L1-L3, never on the pipeline.
// No SQL/database code is allowed in this package.
package l4motility
