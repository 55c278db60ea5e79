// Package owner pins mutations of a log to a single goroutine.
//
// The logs rewrite their whole sequence on every change, so two writers would
// silently lose updates. Instead of a lock, a Thread records the goroutine
// that bound it and MustOwn panics when called from anywhere else.
package owner

import (
	"fmt"

	"github.com/petermattis/goid"
)

// Thread identifies the owning goroutine.
type Thread struct {
	id int64
}

// Bind returns a Thread owned by the calling goroutine.
func Bind() *Thread {
	return &Thread{id: goid.Get()}
}

// IsCurrent reports whether the caller runs on the owning goroutine.
func (t *Thread) IsCurrent() bool {
	return goid.Get() == t.id
}

// MustOwn panics with a *ViolationError when the caller is not the owner.
func (t *Thread) MustOwn(op string) {
	if cur := goid.Get(); cur != t.id {
		panic(&ViolationError{Op: op, Owner: t.id, Caller: cur})
	}
}

// ViolationError describes a mutation attempted off the owning goroutine.
type ViolationError struct {
	Op     string
	Owner  int64
	Caller int64
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s called from goroutine %d, owned by goroutine %d", e.Op, e.Caller, e.Owner)
}
