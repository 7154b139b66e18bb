// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2026 The mmm Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package capguard manages the mount-administration capability
// (CAP_SYS_ADMIN) the deployer runs with: permitted at all times, effective
// only for the duration of a single mount or unmount syscall. The guard it
// hands out is a scoped, per-thread resource: it must be released on the
// same goroutine that acquired it and must not be passed to another one.
package capguard

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/moby/sys/capability"
)

// ErrMissingPermitted is returned by Init when the process's permitted
// capability set lacks CAP_SYS_ADMIN. The caller is expected to either print
// an instructive message and exit, or enter a user+mount namespace (package
// nsenter) where the capability is gained implicitly.
var ErrMissingPermitted = errors.New("missing CAP_SYS_ADMIN in the permitted capability set")

// Init verifies this process holds CAP_SYS_ADMIN in its permitted set,
// clears the ambient set, and lowers the effective set. It must be called
// once at process startup, before any other package in this tree touches
// capabilities.
func Init() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("load capabilities: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("load capabilities: %w", err)
	}

	caps.Clear(capability.AMBIENT)
	if err := caps.Apply(capability.AMBIENT); err != nil {
		return fmt.Errorf("clear ambient capability set: %w", err)
	}

	if !caps.Get(capability.PERMITTED, capability.CAP_SYS_ADMIN) {
		return ErrMissingPermitted
	}

	return lower()
}

func lower() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("load capabilities: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("load capabilities: %w", err)
	}
	caps.Unset(capability.EFFECTIVE, capability.CAP_SYS_ADMIN)
	if err := caps.Apply(capability.EFFECTIVE); err != nil {
		return fmt.Errorf("lower effective capability set: %w", err)
	}
	return nil
}

// Elevated is a scoped elevation of CAP_SYS_ADMIN into the effective set.
// It is acquired immediately before a privileged syscall and released
// immediately after, on the same goroutine. Elevated is not safe to use
// from a goroutine other than the one that called Raise: capability sets
// are per-thread, and the Go runtime may move a goroutine across OS
// threads at any unlocked yield point.
type Elevated struct {
	released bool
}

// Raise locks the calling goroutine to its current OS thread and raises
// CAP_SYS_ADMIN into the effective set. The caller must call Release when
// the privileged operation is complete; Release unlocks the goroutine from
// its thread.
func Raise() (*Elevated, error) {
	runtime.LockOSThread()

	caps, err := capability.NewPid2(0)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("load capabilities: %w", err)
	}
	if err := caps.Load(); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("load capabilities: %w", err)
	}
	caps.Set(capability.EFFECTIVE, capability.CAP_SYS_ADMIN)
	if err := caps.Apply(capability.EFFECTIVE); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("raise effective capability set: %w", err)
	}

	return &Elevated{}, nil
}

// Release lowers the effective capability set back down and unlocks the
// goroutine from its OS thread. Release is idempotent; calling it more
// than once (or on a nil *Elevated) is a no-op.
func (e *Elevated) Release() {
	if e == nil || e.released {
		return
	}
	e.released = true
	defer runtime.UnlockOSThread()
	_ = lower()
}
