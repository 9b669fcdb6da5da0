package registry

import "errors"

// ErrStaleState indicates a guarded transition found the video in a different
// stage than the caller expected. The record was changed by another actor
// between the caller's read and its write; the caller should re-read and
// re-decide rather than retry blindly.
var ErrStaleState = errors.New("stale stage state")
