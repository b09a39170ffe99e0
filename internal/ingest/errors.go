package ingest

import "errors"

// ErrServiceAlreadyStarted is returned by Run/Replay when the Driver is
// already running.
var ErrServiceAlreadyStarted = errors.New("ingest: driver already started")
