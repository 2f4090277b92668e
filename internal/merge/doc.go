// Package merge implements the adaptive multi-clip merge engine.
//
// A run flows through the following stages, one clip and one group at a time:
//
//	Prober → SelectCanvas → PlanFit (+ BackgroundSynthesizer) → Normalizer → Assembler
//
// Every stage receives the explicit RunConfig; nothing is read from ambient
// state. Encoding is delegated to a media.Engine so the orchestration can be
// exercised against a fake engine.
package merge
