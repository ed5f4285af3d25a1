// Package casa holds the types shared by every layer of the CASA
// (computer-assisted sperm analysis) engine: per-run calibration and the
// typed analysis error.
//
// The engine is layered the same way the LiDAR stack is:
//
//	l1detections  per-frame detections and input validation
//	l2tracks      frame-to-frame association into tracks
//	l3kinematics  per-track CASA parameters in physical units
//	l4motility    motility classification and run aggregation
//	pipeline      orchestration and result assembly
//
// Each layer may depend on the layers below it, never above. No SQL is
// allowed in any of them; persistence lives in storage/sqlite.
package casa
