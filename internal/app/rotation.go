package app

import "sync/atomic"

// RotationController is the one piece of state touched from outside the
// watcher loop. The signal goroutine only sets the flag; all file I/O
// happens when the loop consumes it at the top of its next iteration, so a
// rotation request can never interleave with an in-progress audit write.
type RotationController struct {
	requested atomic.Bool
}

func NewRotationController() *RotationController {
	return &RotationController{}
}

// Request marks a rotation as pending. Safe from any goroutine; repeated
// requests before the loop observes the flag coalesce into one rotation.
func (r *RotationController) Request() {
	r.requested.Store(true)
}

// Consume atomically clears the flag and reports whether it was set.
func (r *RotationController) Consume() bool {
	return r.requested.Swap(false)
}

// Pending reports the flag without clearing it. Test hook.
func (r *RotationController) Pending() bool {
	return r.requested.Load()
}
