package kernel

import "errors"

// ErrCapabilityMismatch is returned by Run before any request is sent when
// tools are requested but the counterpart never declared tool support.
var ErrCapabilityMismatch = errors.New("counterpart does not support tool-augmented requests")
