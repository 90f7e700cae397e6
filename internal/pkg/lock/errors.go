package lock

import "errors"

// ErrBusy is returned when a gate key could not be acquired in time.
var ErrBusy = errors.New("gate busy")
