package enums

import "fmt"

// SyncOperation is the mutation kind recorded in the sync queue.
type SyncOperation string

const (
	SyncOperationCreate SyncOperation = "create"
	SyncOperationUpdate SyncOperation = "update"
	SyncOperationDelete SyncOperation = "delete"
)

var validSyncOperations = []SyncOperation{
	SyncOperationCreate,
	SyncOperationUpdate,
	SyncOperationDelete,
}

// String implements fmt.Stringer.
func (o SyncOperation) String() string {
	return string(o)
}

// IsValid reports whether the value is a known SyncOperation.
func (o SyncOperation) IsValid() bool {
	for _, candidate := range validSyncOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseSyncOperation converts raw input into a SyncOperation.
func ParseSyncOperation(value string) (SyncOperation, error) {
	for _, candidate := range validSyncOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync operation %q", value)
}
