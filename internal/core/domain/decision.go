package domain

// Decision is the reconciliation outcome for one identity key.
type Decision string

// Reconciliation decisions.
const (
	// DecisionInsertLocal inserts a remote-only record into the local store.
	DecisionInsertLocal Decision = "insert_local"

	// DecisionPushLocal creates a local-only record on the remote store.
	DecisionPushLocal Decision = "push_local"

	// DecisionPull overwrites the local record with the remote values.
	DecisionPull Decision = "pull"

	// DecisionPush sends the local record to the remote store as an update.
	DecisionPush Decision = "push"

	// DecisionNone leaves both sides untouched.
	DecisionNone Decision = "none"
)

// String returns the string representation.
func (d Decision) String() string {
	return string(d)
}

// Decide applies last-writer-wins to a local and a remote record sharing an
// identity key. Either side may be nil. A side with a timestamp beats a side
// without one; otherwise the strictly later timestamp wins.
//
// Equal timestamps yield DecisionNone. Two edits landing on the same tick
// on both sides are therefore never reconciled.
func Decide(local, remote *Record) Decision {
	switch {
	case local == nil && remote == nil:
		return DecisionNone
	case local == nil:
		return DecisionInsertLocal
	case remote == nil:
		return DecisionPushLocal
	}

	lHas, rHas := local.HasTimestamp(), remote.HasTimestamp()
	switch {
	case !lHas && !rHas:
		return DecisionNone
	case rHas && !lHas:
		return DecisionPull
	case lHas && !rHas:
		return DecisionPush
	case remote.UpdatedAt.After(local.UpdatedAt):
		return DecisionPull
	case local.UpdatedAt.After(remote.UpdatedAt):
		return DecisionPush
	default:
		return DecisionNone
	}
}

// SameTick reports whether both records carry the identical timestamp, the
// case Decide resolves as already converged.
func SameTick(local, remote *Record) bool {
	if local == nil || remote == nil {
		return false
	}
	return local.HasTimestamp() && remote.HasTimestamp() && local.UpdatedAt.Equal(remote.UpdatedAt)
}
