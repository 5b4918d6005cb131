// Package domain holds the study-scheduling entities, derived statistics,
// repository contracts, and error taxonomy shared by the scoring engine and
// the prediction pipeline.
package domain

import "errors"

var (
	// ErrInsufficientData indicates there is not enough history to train on.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrNotTrained indicates a prediction was requested before any model
	// was trained or loaded.
	ErrNotTrained = errors.New("model not trained")

	// ErrUnknownSubject indicates a subject was not seen during encoder fit.
	ErrUnknownSubject = errors.New("unknown subject")

	// ErrDataAccess wraps collaborator data-access failures. Callers degrade
	// to defaults rather than propagate it to users.
	ErrDataAccess = errors.New("data access failed")

	// ErrInvalidWeights indicates strategy weights that do not sum to 1.0.
	ErrInvalidWeights = errors.New("scoring weights must sum to 1.0")

	// ErrTrainingInProgress indicates another training run holds the lock.
	ErrTrainingInProgress = errors.New("training already in progress")
)
