package solver

import "errors"

var (
	// ErrNoStickers is returned when the problem carries no stickers at all.
	ErrNoStickers = errors.New("problem must contain at least one sticker")
	// ErrInvalidSticker is returned for stickers with an empty name or negative demand.
	ErrInvalidSticker = errors.New("invalid sticker")
	// ErrDuplicateSticker is returned when two stickers share a name.
	ErrDuplicateSticker = errors.New("duplicate sticker name")
	// ErrInvalidCapacity is returned when the layout capacity is negative.
	ErrInvalidCapacity = errors.New("layout capacity must be non-negative")
	// ErrInvalidMaxLayouts is returned when the layout budget is negative.
	ErrInvalidMaxLayouts = errors.New("max layouts must be non-negative")
	// ErrModelInvalid is returned when the engine rejects the generated
	// model. This indicates a defect in the model builder, never bad input.
	ErrModelInvalid = errors.New("engine rejected the model as invalid")
	// ErrInconsistentSolution is returned when the engine's assignment
	// violates a modeled invariant. The result is discarded, never patched.
	ErrInconsistentSolution = errors.New("solution violates model invariants")
)

// IsInvalidProblem reports whether err stems from problem validation, as
// opposed to a solver or decoding defect.
func IsInvalidProblem(err error) bool {
	return errors.Is(err, ErrNoStickers) ||
		errors.Is(err, ErrInvalidSticker) ||
		errors.Is(err, ErrDuplicateSticker) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidMaxLayouts)
}
