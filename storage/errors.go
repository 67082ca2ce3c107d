package storage

import (
	"errors"
	"fmt"

	"github.com/storyreel/backend/transform"
)

// ErrNotFound is returned by store lookups when no record matches the id.
var ErrNotFound = errors.New("record not found")

// TransformationError wraps a validation failure raised while converting a
// primary record into its secondary document. It retains the source entity
// kind and id so the offending input can be inspected.
type TransformationError struct {
	Kind   EntityKind
	ItemID string
	Cause  error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation failed for %s %s: %v", e.Kind, e.ItemID, e.Cause)
}

func (e *TransformationError) Unwrap() error {
	return e.Cause
}

// DualStorageError reports a failed dual write. RollbackFailed distinguishes
// the unrecoverable case: the secondary write failed AND the compensating
// delete of the primary record failed, leaving the stores inconsistent.
type DualStorageError struct {
	ItemID         string
	Op             string
	RollbackFailed bool
	Cause          error
}

func (e *DualStorageError) Error() string {
	if e.RollbackFailed {
		return fmt.Sprintf("dual storage %s failed for %s and rollback also failed, manual remediation required: %v", e.Op, e.ItemID, e.Cause)
	}
	return fmt.Sprintf("dual storage %s failed for %s: %v", e.Op, e.ItemID, e.Cause)
}

func (e *DualStorageError) Unwrap() error {
	return e.Cause
}

// StorageStrategyError reports an environment/policy misconfiguration, such
// as running the required strategy with the secondary store disabled.
type StorageStrategyError struct {
	Environment string
	Mode        StrategyMode
	Message     string
}

func (e *StorageStrategyError) Error() string {
	return fmt.Sprintf("storage strategy %s invalid in environment %q: %s", e.Mode, e.Environment, e.Message)
}

// IsRetryable reports whether an error may be retried by the repository.
// Validation, transformation and strategy errors are deterministic;
// retrying them cannot succeed.
func IsRetryable(err error) bool {
	var ve *transform.ValidationError
	var te *TransformationError
	var se *StorageStrategyError
	if errors.As(err, &ve) || errors.As(err, &te) || errors.As(err, &se) {
		return false
	}
	var de *DualStorageError
	if errors.As(err, &de) && de.RollbackFailed {
		// The stores are known-inconsistent; only an operator can fix this.
		return false
	}
	return true
}
