package importer

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch           = errors.New("import batch is empty")
	ErrMissingTenant        = errors.New("tenant id is required")
	ErrMissingBillingEntity = errors.New("billing entity is required")
	ErrTooManyRows          = errors.New("import batch exceeds the maximum number of rows")
	ErrBatchAborted         = errors.New("import batch aborted")
)

// Step names the stage of row processing an error happened in.
type Step string

const (
	StepValidation Step = "validation"
	StepClient     Step = "client"
	StepOffer      Step = "offer"
	StepEquipment  Step = "equipment"
	StepContract   Step = "contract"
)

// RowError is the failure of a single row. Row is 1-based.
type RowError struct {
	Row  int
	Step Step
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func rowError(row int, step Step, err error) *RowError {
	return &RowError{Row: row, Step: step, Err: err}
}

func validationError(row int, format string, args ...any) *RowError {
	return rowError(row, StepValidation, fmt.Errorf(format, args...))
}
