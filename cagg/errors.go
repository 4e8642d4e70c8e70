package cagg

import (
	"fmt"

	"github.com/cube2222/caggunion/types"
)

// UnsupportedColumnTypeError is returned when the partition column type
// can't be used as a continuous aggregate time dimension.
type UnsupportedColumnTypeError struct {
	Type types.OID
}

func (e *UnsupportedColumnTypeError) Error() string {
	return fmt.Sprintf("unsupported datatype for continuous aggregates: %s", e.Type)
}

// ContractViolationError means the inputs break a precondition the caller must uphold.
type ContractViolationError struct {
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("continuous aggregate contract violation: %s", e.Reason)
}

func contractViolation(format string, args ...interface{}) error {
	return &ContractViolationError{Reason: fmt.Sprintf(format, args...)}
}
