package ecc

import (
	"errors"
	"fmt"

	"github.com/eccmem/eccmem/internal/bvsat"
)

var (
	// ErrRedundantRow is matched by *RedundantRowError.
	ErrRedundantRow = errors.New("ecc: parity-check matrix has a redundant row")
	// ErrNotSystematic means the right block of a parity-check matrix is not the identity.
	ErrNotSystematic = errors.New("ecc: parity-check matrix is not in systematic form")
	// ErrNotOrthogonal means H*G^T is not zero.
	ErrNotOrthogonal = errors.New("ecc: generator matrix is not orthogonal to parity-check matrix")
	// ErrMapping means some data bit has no unit column in the generator matrix.
	ErrMapping = errors.New("ecc: generator matrix does not map every data bit")
	// ErrInvalidConstruction is returned for parameters a closed-form construction cannot serve.
	ErrInvalidConstruction = errors.New("ecc: invalid construction parameters")
	// ErrNotGenerated is returned when matrices are requested before generation succeeded.
	ErrNotGenerated = errors.New("ecc: matrices have not been generated")
	// ErrUnknownKind is returned for names missing from the registry.
	ErrUnknownKind = errors.New("ecc: unknown code kind")

	// ErrUnsatisfiable means no parity-check matrix satisfies the code's conditions.
	ErrUnsatisfiable = bvsat.ErrUnsatisfiable
	// ErrNoModel means the search was cancelled before any model was found.
	ErrNoModel = bvsat.ErrNoModel
)

// RedundantRowError reports the original row index that is a linear
// combination of the others.
type RedundantRowError struct {
	Row    int // row index in the input matrix
	Pivot  int // diagonal position that could not be filled
	Column int
}

func (e *RedundantRowError) Error() string {
	return fmt.Sprintf("ecc: no pivot for position (%d,%d): row %d of the input matrix is redundant", e.Pivot, e.Column, e.Row)
}

func (e *RedundantRowError) Is(target error) bool { return target == ErrRedundantRow }
