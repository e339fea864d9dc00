package identityfake

import "errors"

// ErrNoRefreshQueued is returned by Refresh when no result has been queued.
var ErrNoRefreshQueued = errors.New("identityfake: no refresh result queued")
