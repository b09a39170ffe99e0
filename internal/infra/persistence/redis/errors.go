package redis

import "errors"

// ErrRollbackTargetNotInJournal is returned by RollbackTo when blockNumber
// is older than every snapshot retained in the rollback journal.
var ErrRollbackTargetNotInJournal = errors.New("redis: rollback target not found in journal")

// ErrNoActivePipeline is returned by UpdateIndexState when called with a
// context not produced by this Binder's HandleWithState.
var ErrNoActivePipeline = errors.New("redis: UpdateIndexState called outside HandleWithState")
