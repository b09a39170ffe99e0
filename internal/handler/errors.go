package handler

import "errors"

// ErrNoHandlerVersions is returned when a Handler is constructed with an
// empty version list.
var ErrNoHandlerVersions = errors.New("handler: no handler versions registered")

// ErrDuplicateVersion is returned when two HandlerVersions share a
// VersionName.
var ErrDuplicateVersion = errors.New("handler: duplicate handler version name")

// ErrChainMismatch indicates a block's PreviousBlockHash did not match the
// in-memory cursor at the sequence check. This means the reader did not roll
// back correctly before sending this block.
var ErrChainMismatch = errors.New("handler: block's previous hash does not match last processed block")
