// Package l3kinematics owns Layer 3 (Kinematics) of the CASA data model.
//
// Responsibilities: conversion of a track's pixel-space centroids into
// physical units and computation of the CASA parameter set (VCL, VSL,
// VAP, ALH, BCF, LIN, STR, WOB, MAD), plus the parallel per-track fan-out.
// Key types: TrackKinematics, Options.
//
// Velocities are in µm/s, BCF in Hz, angles in degrees and ratios in
// percent. Any ratio whose denominator is zero is defined as 0.
//
// Dependency rule: L3 may depend on L1-L2, never on L4 or above.
// No SQL/database code is allowed in this package.
package l3kinematics
