// Package pipeline runs a complete CASA analysis: ingest validation,
// tracking, kinematics, classification and result assembly.
//
// Engine.Analyze never panics and never returns an error: every failure is
// folded into an AnalysisResult with Success=false and a Failure naming
// the stage. Each call owns its own tracker state, so an Engine may be
// shared across goroutines.
package pipeline
