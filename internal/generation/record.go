package generation

// The helpers below hold the versioning rules shared by Store implementations
// that keep the whole record in memory or in a document.

// PrepareCreate returns the status to store for a new run, or false when
// existing is still generating.
func PrepareCreate(existing *Status, status Status) (Status, bool) {
	if existing != nil && existing.IsGenerating {
		return *existing, false
	}
	status.Version = 1
	if existing != nil {
		status.Version = existing.Version + 1
	}
	status.Stale = false
	return status, true
}

// PrepareSwap returns the status to store when existing matches the expected
// version and run, or false.
func PrepareSwap(existing *Status, expectedVersion int64, status Status) (Status, bool) {
	if existing == nil || existing.Version != expectedVersion || existing.RunID != status.RunID {
		return Status{}, false
	}
	status.UserID = existing.UserID
	status.Version = expectedVersion + 1
	status.Stale = false
	return status, true
}

// PrepareSet returns the status to store for an unconditional overwrite.
func PrepareSet(existing *Status, status Status) Status {
	status.Version = 1
	if existing != nil {
		status.Version = existing.Version + 1
	}
	status.Stale = false
	return status
}
