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

package freezer

import (
	. "gopkg.in/check.v1"
)

// MockCgroupDir redirects cgroupDir at a fresh temporary directory for the
// duration of a test, so FreezeProcesses/ThawProcesses's actual write path
// can be exercised without touching the real cgroup filesystem.
func MockCgroupDir(c *C) (restore func()) {
	old := cgroupDir
	cgroupDir = c.MkDir()
	return func() {
		cgroupDir = old
	}
}

// CgroupDir returns the freezer cgroup hierarchy root this package
// currently operates under.
func CgroupDir() string {
	return cgroupDir
}

// StatePath exposes statePath for tests that need the exact file path
// FreezeProcesses/ThawProcesses writes to.
func StatePath(cgroupName string) string {
	return statePath(cgroupName)
}
