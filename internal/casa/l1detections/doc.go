// Package l1detections owns Layer 1 (Detections) of the CASA data model.
//
// Responsibilities: the per-frame detection types handed over by the
// image-processing collaborator, ordering and shape validation, and
// decoding of detection files (JSON, CSV).
// Key types: Detection, Frame, Input.
//
// Dependency rule: L1 depends only on the casa root package.
package l1detections
