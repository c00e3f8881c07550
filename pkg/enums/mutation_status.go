package enums

// MutationStatus separates writes confirmed upstream from writes queued locally.
type MutationStatus string

const (
	MutationStatusSynced      MutationStatus = "synced"
	MutationStatusPendingSync MutationStatus = "pending_sync"
)

// String implements fmt.Stringer.
func (s MutationStatus) String() string {
	return string(s)
}

// IsPending reports whether the mutation still waits in the sync queue.
func (s MutationStatus) IsPending() bool {
	return s == MutationStatusPendingSync
}
