package alignment

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientRedundancy means fewer point pairs than polynomial coefficients.
	ErrInsufficientRedundancy = errors.New("insufficient redundancy")

	// ErrSingularSystem means the normal matrix could not be factorized or
	// its computed inverse failed the stability check.
	ErrSingularSystem = errors.New("singular normal system")

	// ErrInvalidOptions means the estimation options were rejected before any work.
	ErrInvalidOptions = errors.New("invalid estimation options")

	// ErrInvalidInput means a point pair carries unusable values.
	ErrInvalidInput = errors.New("invalid point pair")
)

// EstimationError is returned for fatal failures inside the iteration loop.
// It unwraps to one of the package sentinels.
type EstimationError struct {
	Iteration    int // 1-based solve count at which the failure occurred
	Observations int // active observations at that point
	Err          error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("iteration %d (%d observations): %v", e.Iteration, e.Observations, e.Err)
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}
