package service

import "errors"

// ErrIndexNotReady indicates an index did not report ready before the
// configured readiness timeout.
var ErrIndexNotReady = errors.New("index not ready")
