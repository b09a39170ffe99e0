// Package handler implements block-at-a-time processing: applying
// versioned updaters and effects, persisting the index cursor
// transactionally, and coordinating rollback with the reader.
package handler

import (
	"context"

	"github.com/chainkeeper/chainkeeper/internal/chain"
	"github.com/chainkeeper/chainkeeper/internal/pkg/logger"
	"github.com/chainkeeper/chainkeeper/internal/pkg/types"
)

// Handler applies versioned updaters and effects to a block stream and
// maintains a durable index cursor. S is the opaque application state type
// bound by the PersistenceBinder; C is the opaque context value threaded to
// updaters and effects. Not safe for concurrent use; a single driver task
// owns it.
type Handler[S any, C any] struct {
	binder PersistenceBinder[S, C]
	reg    *versionRegistry[S, C]

	handlerVersionName     string
	lastProcessedBlockNum  chain.BlockNumber
	lastProcessedBlockHash chain.BlockHash
	indexStateLoaded       bool

	warnedUnknownVersions types.Set[string]
}

// New constructs a Handler bound to the given PersistenceBinder and
// registered HandlerVersions.
func New[S any, C any](ctx context.Context, binder PersistenceBinder[S, C], versions []HandlerVersion[S, C]) (*Handler[S, C], error) {
	reg, err := newVersionRegistry(ctx, versions)
	if err != nil {
		return nil, err
	}

	return &Handler[S, C]{
		binder:                binder,
		reg:                   reg,
		handlerVersionName:    reg.startName,
		warnedUnknownVersions: types.NewSet[string](),
	}, nil
}

// HandlerVersionName returns the currently active handler version name.
func (h *Handler[S, C]) HandlerVersionName() string {
	return h.handlerVersionName
}

// LastProcessed returns the in-memory cursor (number, hash) of the last
// block this Handler fully applied.
func (h *Handler[S, C]) LastProcessed() (chain.BlockNumber, chain.BlockHash) {
	return h.lastProcessedBlockNum, h.lastProcessedBlockHash
}

// refreshIndexState reloads the persisted IndexState into memory.
func (h *Handler[S, C]) refreshIndexState(ctx context.Context) error {
	state, err := h.binder.LoadIndexState(ctx)
	if err != nil {
		return err
	}

	h.lastProcessedBlockNum = state.BlockNumber
	h.lastProcessedBlockHash = state.BlockHash
	h.indexStateLoaded = true

	if state.HandlerVersionName != "" {
		h.handlerVersionName = state.HandlerVersionName
	}

	return nil
}

// HandleBlock processes a single block: rollback/cold-start reload,
// idempotence check, first-block reseek, sequence check, then apply. It
// returns (needsSeek, seekTarget) when the reader should reposition before
// the next call, rather than erroring.
func (h *Handler[S, C]) HandleBlock(ctx context.Context, block chain.Block, isRollback, isFirstBlock, isReplay bool) (needsSeek bool, seekTarget chain.BlockNumber, err error) {
	// 1. Rollback / cold start.
	if isRollback || (isReplay && isFirstBlock) {
		rollbackTo := block.BlockNumber - 1
		if err := h.binder.RollbackTo(ctx, rollbackTo); err != nil {
			return false, 0, err
		}
		if err := h.refreshIndexState(ctx); err != nil {
			return false, 0, err
		}
	} else if !h.indexStateLoaded {
		if err := h.refreshIndexState(ctx); err != nil {
			return false, 0, err
		}
	}

	// 2. Idempotence.
	if block.BlockNumber == h.lastProcessedBlockNum && block.BlockHash == h.lastProcessedBlockHash {
		return false, 0, nil
	}

	// 3. Seek on first-block mismatch.
	if isFirstBlock && h.lastProcessedBlockHash != "" {
		return true, h.lastProcessedBlockNum + 1, nil
	}

	// 4. Sequence check.
	if !isFirstBlock {
		if block.BlockNumber != h.lastProcessedBlockNum+1 {
			return true, h.lastProcessedBlockNum + 1, nil
		}
		if block.PreviousBlockHash != h.lastProcessedBlockHash {
			return false, 0, ErrChainMismatch
		}
	}

	// 5. Apply.
	err = h.binder.HandleWithState(ctx, func(ctx context.Context, state S, hctx C) error {
		return h.handleActions(ctx, state, block, hctx, isReplay)
	})
	if err != nil {
		return false, 0, err
	}

	return false, 0, nil
}

// handleActions runs the full apply-then-effects-then-persist sequence for
// a single block inside the HandleWithState scope.
func (h *Handler[S, C]) handleActions(ctx context.Context, state S, block chain.Block, hctx C, isReplay bool) error {
	versioned, err := h.applyUpdaters(ctx, state, block, hctx, isReplay)
	if err != nil {
		return err
	}

	if !isReplay {
		h.runEffects(ctx, versioned, block, hctx)
	}

	if err := h.binder.UpdateIndexState(ctx, state, block, isReplay, h.handlerVersionName, hctx); err != nil {
		return err
	}

	h.lastProcessedBlockNum = block.BlockNumber
	h.lastProcessedBlockHash = block.BlockHash

	return nil
}

// actionVersion pairs an action with the handler version active immediately
// after its updaters ran, for use by runEffects.
type actionVersion struct {
	action      chain.Action
	versionName string
}

// applyUpdaters walks updaters of the currently active handler version for
// each action in order, switching version mid-block when an updater
// requests it.
func (h *Handler[S, C]) applyUpdaters(ctx context.Context, state S, block chain.Block, hctx C, isReplay bool) ([]actionVersion, error) {
	versioned := make([]actionVersion, 0, len(block.Actions))

	for _, action := range block.Actions {
		version := h.reg.versions[h.handlerVersionName]

		for i, updater := range version.Updaters {
			if updater.ActionType != action.Type {
				continue
			}

			newVersionName, switched, err := updater.Apply(ctx, state, action.Payload, block.BlockInfo, hctx)
			if err != nil {
				return nil, err
			}

			if switched {
				if _, known := h.reg.versions[newVersionName]; known {
					logger.Info(ctx, "handler version switch requested",
						"from", h.handlerVersionName,
						"to", newVersionName,
						"block.number", block.BlockNumber,
						"action.type", action.Type,
					)

					if remaining := remainingUpdaters(version.Updaters, i); remaining > 0 {
						logger.Warn(ctx, "skipping remaining updaters for this action after mid-action version switch",
							"action.type", action.Type,
							"skipped", remaining,
						)
					}

					if err := h.binder.UpdateIndexState(ctx, state, block, isReplay, newVersionName, hctx); err != nil {
						return nil, err
					}

					h.handlerVersionName = newVersionName

					// Known-version switch stops scanning updaters for this
					// action; an unknown-version request just warns and the
					// remaining same-type updaters below still run.
					break
				} else if _, alreadyWarned := h.warnedUnknownVersions[newVersionName]; !alreadyWarned {
					logger.Warn(ctx, "updater requested switch to unknown handler version, ignoring",
						"requested", newVersionName,
						"current", h.handlerVersionName,
					)
					h.warnedUnknownVersions.Add(newVersionName)
				}
			}
		}

		versioned = append(versioned, actionVersion{action: action, versionName: h.handlerVersionName})
	}

	return versioned, nil
}

// remainingUpdaters counts how many updaters after index matchedIndex share
// its ActionType, i.e. how many would actually have run for this action had
// the switch not stopped the scan.
func remainingUpdaters[S any, C any](updaters []Updater[S, C], matchedIndex int) int {
	actionType := updaters[matchedIndex].ActionType

	count := 0
	for _, u := range updaters[matchedIndex+1:] {
		if u.ActionType == actionType {
			count++
		}
	}
	return count
}

// runEffects invokes every matching effect, in declaration order, for each
// (action, version) pair produced by applyUpdaters.
func (h *Handler[S, C]) runEffects(ctx context.Context, versioned []actionVersion, block chain.Block, hctx C) {
	for _, av := range versioned {
		version := h.reg.versions[av.versionName]

		for _, effect := range version.Effects {
			if effect.ActionType != av.action.Type {
				continue
			}

			if err := effect.Run(ctx, av.action.Payload, block, hctx); err != nil {
				logger.Error(ctx, "effect run failed",
					"action.type", av.action.Type,
					"block.number", block.BlockNumber,
					"error", err,
				)
			}
		}
	}
}
