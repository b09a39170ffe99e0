package handler

import (
	"context"

	"github.com/chainkeeper/chainkeeper/internal/chain"
	"github.com/chainkeeper/chainkeeper/internal/pkg/logger"
	"github.com/chainkeeper/chainkeeper/internal/pkg/validator"
)

// Updater is a deterministic state-mutation rule matched against an action's
// type. Apply must be replay-safe: no I/O not routed through state. It may
// request a handler-version switch by returning a non-empty version name and
// switched=true.
type Updater[S any, C any] struct {
	ActionType string
	Apply      func(ctx context.Context, state S, payload []byte, info chain.BlockInfo, hctx C) (newVersionName string, switched bool, err error)
}

// Effect is a non-deterministic side-effect rule matched against an action's
// type. Effects are skipped during replay.
type Effect[C any] struct {
	ActionType string
	Run        func(ctx context.Context, payload []byte, block chain.Block, hctx C) error
}

// HandlerVersion is a named bundle of updaters and effects defining the
// active processing rules for a span of the chain.
type HandlerVersion[S any, C any] struct {
	VersionName string `validate:"required"`
	Updaters    []Updater[S, C]
	Effects     []Effect[C]
}

// versionRegistry holds the validated set of HandlerVersions and the name
// active at construction time.
type versionRegistry[S any, C any] struct {
	versions    map[string]HandlerVersion[S, C]
	startName   string
}

// newVersionRegistry validates the supplied versions and picks the starting
// one: empty list is fatal, duplicate names are fatal, and the starting
// version defaults to "v1" unless absent (warn and adopt the first supplied
// version) or present-but-not-first (warn and keep "v1" anyway).
func newVersionRegistry[S any, C any](ctx context.Context, versions []HandlerVersion[S, C]) (*versionRegistry[S, C], error) {
	if len(versions) == 0 {
		return nil, ErrNoHandlerVersions
	}

	versionMap := make(map[string]HandlerVersion[S, C], len(versions))
	for _, v := range versions {
		if err := validator.Validate(v); err != nil {
			return nil, err
		}

		if _, exists := versionMap[v.VersionName]; exists {
			return nil, ErrDuplicateVersion
		}
		versionMap[v.VersionName] = v
	}

	const defaultVersionName = "v1"

	startName := defaultVersionName
	if _, ok := versionMap[defaultVersionName]; !ok {
		startName = versions[0].VersionName
		logger.Warn(ctx, "no handler version named v1 registered, adopting first supplied version as start",
			"handler_version", startName,
		)
	} else if versions[0].VersionName != defaultVersionName {
		logger.Warn(ctx, "v1 handler version is not first in supplied list, keeping it as start anyway",
			"first_supplied", versions[0].VersionName,
		)
	}

	return &versionRegistry[S, C]{
		versions:  versionMap,
		startName: startName,
	}, nil
}
