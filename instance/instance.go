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

// Package instance defines the read-only contract the merge engine consumes
// (an ordered mod list plus the active profile's mod order) and the shared
// data types instance data is built from.
package instance

import "path/filepath"

// ModIndex identifies an entry in an instance's mod list. Serialised as an
// unsigned integer; never negative, never larger than 2^32-1.
type ModIndex uint32

// ModOrderIndex identifies an entry within a profile's mod order.
type ModOrderIndex uint32

// ModEntryKind distinguishes a real mod from an organisational separator.
type ModEntryKind int

const (
	// KindMod is a real mod: its directory contributes files to the merge.
	KindMod ModEntryKind = iota
	// KindSeparator is a non-file-contributing organisational placeholder.
	KindSeparator
)

func (k ModEntryKind) String() string {
	if k == KindSeparator {
		return "separator"
	}
	return "mod"
}

// ModDeclaration is an entry in an instance's mod list.
type ModDeclaration struct {
	Name string
	Kind ModEntryKind
}

// ModOrderEntry represents a ModDeclaration within a profile's mod order.
// Entries later in the order have higher priority.
type ModOrderEntry struct {
	Index   ModIndex
	Enabled bool
}

// NewModOrderEntry returns a new, disabled, ModOrderEntry for index.
func NewModOrderEntry(index ModIndex) ModOrderEntry {
	return ModOrderEntry{Index: index, Enabled: false}
}

// DefaultProfileName is the conventional name consulted when no profile is
// explicitly selected.
const DefaultProfileName = "default"

// Profile is a named selection and ordering of mods.
type Profile struct {
	DisplayName string          `cbor:"display_name"`
	Order       []ModOrderEntry `cbor:"order"`
}

// DefaultProfile returns the empty profile inserted when an instance has no
// profiles at all.
func DefaultProfile() Profile {
	return Profile{DisplayName: "Default"}
}

// Instance is the contract the merge engine (package filetree) consumes.
type Instance interface {
	// BaseDir is the instance's absolute base directory.
	BaseDir() string
	// Mods is the instance's full, indexed, mod list.
	Mods() []ModDeclaration
	// Order is the active profile's ordered mod entries.
	Order() []ModOrderEntry
	// ModDir is the absolute path to decl's source directory.
	ModDir(decl ModDeclaration) string
}

// ModDirFor computes the conventional mod directory path
// (baseDir/mods/name) shared by every Instance implementation.
func ModDirFor(baseDir string, decl ModDeclaration) string {
	return filepath.Join(baseDir, "mods", decl.Name)
}
