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

// Package freezer writes FROZEN/THAWED to a cgroup's freezer.state file,
// the same mechanism snap-update-ns uses to pause a snap's processes
// around a mount namespace change. The deployer freezes the game's cgroup
// around overlay teardown, so the game can't be mid-syscall against the
// staging tree's files while the union mount that serves them disappears.
package freezer

import (
	"fmt"
	"os"
	"path/filepath"
)

// cgroupDir is the root of the freezer cgroup hierarchy this package
// operates under. It's a var, not a const, so tests can redirect it at a
// throwaway directory rather than touching the real cgroup filesystem.
var cgroupDir = "/sys/fs/cgroup/freezer"

const (
	stateFrozen = "FROZEN"
	stateThawed = "THAWED"
)

// WriteError reports that a freezer.state write failed.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write freezer state to %q: %v", e.Path, e.Err)
}
func (e *WriteError) Unwrap() error { return e.Err }

func statePath(cgroupName string) string {
	return filepath.Join(cgroupDir, "snap."+cgroupName, "freezer.state")
}

// FreezeProcesses writes FROZEN to the freezer.state file of the cgroup
// named "snap.<cgroupName>", if and only if that cgroup's directory
// exists. If the cgroup doesn't exist, FreezeProcesses silently does
// nothing: there is nothing to freeze.
func FreezeProcesses(cgroupName string) error {
	return writeState(cgroupName, stateFrozen)
}

// ThawProcesses writes THAWED to the same file FreezeProcesses writes to,
// under the same existence rule.
func ThawProcesses(cgroupName string) error {
	return writeState(cgroupName, stateThawed)
}

func writeState(cgroupName, state string) error {
	path := statePath(cgroupName)
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &WriteError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, []byte(state), 0644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
