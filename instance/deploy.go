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

package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/modkit/mmm/instance/data"
)

// DeployView is the read-only Instance the deployer builds a merge tree
// from: a canonicalised instance directory, its full mod list, and a
// single selected profile's mod order.
type DeployView struct {
	dir     string
	mods    []ModDeclaration
	profile Profile
}

// Open canonicalises dir, loads its instance data file, and selects the
// active profile: profileName if non-empty, otherwise the conventional
// "default" profile, otherwise the lexicographically first profile,
// otherwise DeployOpenError wrapping ErrNoProfiles.
func Open(dir string, profileName string) (*DeployView, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &DeployOpenError{Dir: dir, Err: fmt.Errorf("resolve absolute path: %w", err)}
	}
	absDir, err = filepath.EvalSymlinks(absDir)
	if err != nil {
		return nil, &DeployOpenError{Dir: dir, Err: fmt.Errorf("canonicalize path: %w", err)}
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, &DeployOpenError{Dir: absDir, Err: fmt.Errorf("stat: %w", err)}
	}
	if !info.IsDir() {
		return nil, &DeployOpenError{Dir: absDir, Err: &NotADirectoryError{Path: absDir}}
	}

	d, err := data.Load(filepath.Join(absDir, data.InstanceDataFile))
	if err != nil {
		return nil, &DeployOpenError{Dir: absDir, Err: err}
	}

	profile, err := selectProfile(d.Profiles, profileName)
	if err != nil {
		return nil, &DeployOpenError{Dir: absDir, Err: err}
	}

	return &DeployView{dir: absDir, mods: d.Mods, profile: profile}, nil
}

func selectProfile(profiles map[string]Profile, name string) (Profile, error) {
	if name != "" {
		p, ok := profiles[name]
		if !ok {
			return Profile{}, &ProfileNotFoundError{Name: name}
		}
		return p, nil
	}
	if p, ok := profiles[DefaultProfileName]; ok {
		return p, nil
	}
	if len(profiles) == 0 {
		return Profile{}, ErrNoProfiles
	}
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return profiles[names[0]], nil
}

// BaseDir implements Instance.
func (v *DeployView) BaseDir() string { return v.dir }

// Mods implements Instance.
func (v *DeployView) Mods() []ModDeclaration { return v.mods }

// Order implements Instance.
func (v *DeployView) Order() []ModOrderEntry { return v.profile.Order }

// ModDir implements Instance.
func (v *DeployView) ModDir(decl ModDeclaration) string { return ModDirFor(v.dir, decl) }

// ErrNoProfiles is returned by Open when the instance data has no
// profiles at all.
var ErrNoProfiles = fmt.Errorf("instance has no profiles")

// NotADirectoryError reports that an instance's base directory exists but
// is not a directory.
type NotADirectoryError struct{ Path string }

func (e *NotADirectoryError) Error() string { return fmt.Sprintf("%q is not a directory", e.Path) }

// ProfileNotFoundError reports that a caller-specified profile name does
// not exist in the instance data.
type ProfileNotFoundError struct{ Name string }

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile %q does not exist", e.Name)
}

// DeployOpenError wraps any failure to open a deploy view: path
// resolution, loading the instance data file, or profile selection.
type DeployOpenError struct {
	Dir string
	Err error
}

func (e *DeployOpenError) Error() string {
	return fmt.Sprintf("failed to open instance at %q: %v", e.Dir, e.Err)
}
func (e *DeployOpenError) Unwrap() error { return e.Err }
