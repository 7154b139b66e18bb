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

// Package nsenter implements the deployer's optional user+mount namespace
// mode: unshare into a fresh user and mount namespace, identity-map the
// calling UID/GID, and deny setgroups, so CAP_SYS_ADMIN is gained within
// the namespace without any file capability being required.
package nsenter

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// WriteFileError reports that a /proc/self/{uid_map,gid_map,setgroups}
// write failed, or completed short.
type WriteFileError struct {
	Path string
	Err  error
}

func (e *WriteFileError) Error() string {
	return fmt.Sprintf("failed to write %q: %v", e.Path, e.Err)
}
func (e *WriteFileError) Unwrap() error { return e.Err }

// UnshareError reports that the unshare(2) syscall itself failed.
type UnshareError struct{ Err error }

func (e *UnshareError) Error() string { return fmt.Sprintf("unshare failed: %v", e.Err) }
func (e *UnshareError) Unwrap() error { return e.Err }

// Enter locks the calling goroutine to its current OS thread, unshares that
// thread into a new user namespace and a new mount namespace, then
// identity-maps the calling UID and GID so that the process's view of its
// own identity is unchanged, while CAP_SYS_ADMIN is implicitly held within
// the new namespace. Mounts performed after Enter returns are visible only
// within this namespace.
//
// The goroutine that calls Enter is never unlocked from its thread: the Go
// scheduler is otherwise free to resume that goroutine on any M, which
// would silently leave it back in the parent mount namespace the moment it
// did. Every mount and the eventual game exec must happen on the goroutine
// that called Enter, for the remaining lifetime of the process.
//
// Enter must run before any other thread is spawned that needs to observe
// the resulting mounts: namespace membership does not retroactively apply
// to sibling threads.
func Enter() error {
	runtime.LockOSThread()

	uid := os.Getuid()
	gid := os.Getgid()

	if err := unix.Unshare(unix.CLONE_NEWUSER | unix.CLONE_NEWNS); err != nil {
		return &UnshareError{Err: err}
	}

	if err := writeMap("/proc/self/uid_map", uid); err != nil {
		return err
	}
	if err := writeFile("/proc/self/setgroups", "deny"); err != nil {
		return err
	}
	if err := writeMap("/proc/self/gid_map", gid); err != nil {
		return err
	}
	return nil
}

func writeMap(path string, id int) error {
	return writeFile(path, fmt.Sprintf("%d %d 1\n", id, id))
}

func writeFile(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return &WriteFileError{Path: path, Err: err}
	}
	defer f.Close()

	n, err := f.Write([]byte(value))
	if err != nil {
		return &WriteFileError{Path: path, Err: err}
	}
	if n != len(value) {
		return &WriteFileError{Path: path, Err: fmt.Errorf("incomplete write (%d of %d bytes)", n, len(value))}
	}
	return nil
}
