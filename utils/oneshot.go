package utils

import "sync/atomic"

// OneShot guards an action that may run at most once. The zero value is
// ready to use.
type OneShot struct {
	fired atomic.Bool
}

// TryFire reports whether the caller won the right to run the action.
// Only the first call ever returns true.
func (o *OneShot) TryFire() bool {
	return o.fired.CompareAndSwap(false, true)
}

func (o *OneShot) Fired() bool {
	return o.fired.Load()
}
