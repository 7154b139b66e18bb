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

// Package edit wraps an instance data file with mutation support: adding,
// removing, renaming and reordering mods and profiles, behind a
// write-behind persistence worker that is the only goroutine ever
// allowed to touch the instance data file on disk.
package edit

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/modkit/mmm/instance"
	"github.com/modkit/mmm/instance/data"
)

// displayNameByteBudget bounds a profile's key to a length comfortable in
// a small-string-optimised representation, mirroring the inline capacity
// of the original editor's compact_str-backed profile keys.
const displayNameByteBudget = 24

// Instance wraps an instance data file for interactive editing. Only one
// Instance should have a given directory open at a time; it owns the
// dedicated goroutine that performs every write to the instance data
// file.
type Instance struct {
	dir            string
	data           *data.InstanceData
	currentProfile string
	writer         *writer
	changed        bool
	log            *slog.Logger
}

// Open canonicalises dir, requires that it is a directory, and loads its
// instance data file. If the remembered current-profile state ("default")
// doesn't match an existing profile, it falls back to the lexicographically
// first profile, inserting an empty default profile if there are none at
// all. A dedicated persistence goroutine is spawned before Open returns.
func Open(dir string, log *slog.Logger) (*Instance, error) {
	if log == nil {
		log = slog.Default()
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &OpenError{Dir: dir, Err: fmt.Errorf("resolve absolute path: %w", err)}
	}
	absDir, err = filepath.EvalSymlinks(absDir)
	if err != nil {
		return nil, &OpenError{Dir: dir, Err: fmt.Errorf("canonicalize path: %w", err)}
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, &OpenError{Dir: absDir, Err: fmt.Errorf("stat: %w", err)}
	}
	if !info.IsDir() {
		return nil, &OpenError{Dir: absDir, Err: fmt.Errorf("%q is not a directory", absDir)}
	}

	d, err := data.Load(filepath.Join(absDir, data.InstanceDataFile))
	if err != nil {
		return nil, &OpenError{Dir: absDir, Err: err}
	}

	current := instance.DefaultProfileName
	if _, ok := d.Profiles[current]; !ok {
		if names := sortedProfileNames(d.Profiles); len(names) > 0 {
			current = names[0]
		} else {
			d.Profiles[current] = instance.DefaultProfile()
		}
	}

	inst := &Instance{
		dir:            absDir,
		data:           d,
		currentProfile: current,
		writer:         spawnWriter(absDir, log),
		log:            log,
	}
	inst.addMissingModsToOrder()
	return inst, nil
}

func sortedProfileNames(profiles map[string]instance.Profile) []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BaseDir implements instance.Instance.
func (e *Instance) BaseDir() string { return e.dir }

// Mods implements instance.Instance.
func (e *Instance) Mods() []instance.ModDeclaration { return e.data.Mods }

// Order implements instance.Instance: the active profile's mod order.
func (e *Instance) Order() []instance.ModOrderEntry {
	return e.data.Profiles[e.currentProfile].Order
}

// ModDir implements instance.Instance.
func (e *Instance) ModDir(decl instance.ModDeclaration) string {
	return instance.ModDirFor(e.dir, decl)
}

// CurrentProfile is the name of the active profile.
func (e *Instance) CurrentProfile() string { return e.currentProfile }

func (e *Instance) setOrder(order []instance.ModOrderEntry) {
	p := e.data.Profiles[e.currentProfile]
	p.Order = order
	e.data.Profiles[e.currentProfile] = p
}

// addMissingModsToOrder appends a disabled ModOrderEntry to the active
// profile's order for every ModIndex it doesn't already reference. It
// must run after loading and after every profile switch, since neither
// the file on disk nor a sibling profile is guaranteed to mention every
// mod.
func (e *Instance) addMissingModsToOrder() {
	order := e.Order()
	present := make([]bool, len(e.data.Mods))
	for _, entry := range order {
		if int(entry.Index) < len(present) {
			present[entry.Index] = true
		}
	}
	for idx, ok := range present {
		if !ok {
			order = append(order, instance.NewModOrderEntry(instance.ModIndex(idx)))
		}
	}
	e.setOrder(order)
}

// SwitchToProfile sets the active profile to name. It is a no-op, logged,
// if name does not exist.
func (e *Instance) SwitchToProfile(name string) {
	if _, ok := e.data.Profiles[name]; !ok {
		e.log.Error("switch to profile: no such profile", "profile", name)
		return
	}
	e.currentProfile = name
	e.addMissingModsToOrder()
}

// AddProfile trims whitespace from displayName, derives a unique key from
// it (truncated to a short-string-friendly byte budget on grapheme-cluster
// boundaries, suffixed with a monotonically increasing integer on
// collision), inserts an empty profile under that key, and returns the
// key. The profile's stored DisplayName is the trimmed, unsuffixed,
// untruncated name the caller supplied.
func (e *Instance) AddProfile(displayName string) string {
	trimmed := strings.TrimSpace(displayName)

	exists := func(key string) bool {
		_, ok := e.data.Profiles[key]
		return ok
	}
	key := truncateGraphemes(trimmed, displayNameByteBudget)
	for n := 2; exists(key); n++ {
		suffix := fmt.Sprintf("-%d", n)
		budget := displayNameByteBudget - len(suffix)
		if budget < 0 {
			budget = 0
		}
		key = truncateGraphemes(trimmed, budget) + suffix
	}

	e.data.Profiles[key] = instance.Profile{DisplayName: trimmed}
	e.changed = true
	return key
}

func truncateGraphemes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	var n int
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		_, end := g.Positions()
		if end > maxBytes {
			break
		}
		n = end
	}
	return s[:n]
}

// ErrAlreadyExists is returned by CreateMod and RenameMod when the
// requested name is already taken by another mod.
var ErrAlreadyExists = errors.New("a mod with that name already exists")

func (e *Instance) modExists(name string, excluding int) bool {
	for i, m := range e.data.Mods {
		if i == excluding {
			continue
		}
		if m.Name == name {
			return true
		}
	}
	return false
}

// CreateMod validates name, appends a new ModDeclaration and a disabled
// order entry to the active profile, and (for ModEntryKind Mod) creates
// the mod's source directory on disk. A directory-creation failure rolls
// back the in-memory addition and surfaces the I/O error as InitError.
func (e *Instance) CreateMod(name string, kind instance.ModEntryKind) error {
	if err := instance.ValidateName(name); err != nil {
		return err
	}
	if e.modExists(name, -1) {
		return ErrAlreadyExists
	}

	decl := instance.ModDeclaration{Name: name, Kind: kind}
	idx := instance.ModIndex(len(e.data.Mods))
	e.data.Mods = append(e.data.Mods, decl)
	e.setOrder(append(e.Order(), instance.NewModOrderEntry(idx)))

	if kind == instance.KindMod {
		if err := os.Mkdir(e.ModDir(decl), 0750); err != nil {
			e.data.Mods = e.data.Mods[:len(e.data.Mods)-1]
			e.setOrder(e.Order()[:len(e.Order())-1])
			return &InitError{Err: err}
		}
	}

	e.changed = true
	return nil
}

// RemoveMod removes every profile's order entry referencing idx,
// decrements every surviving entry whose index was greater than idx, and
// removes the mod declaration itself. It returns the on-disk directory
// path the caller may delete out-of-band, and whether idx was valid.
func (e *Instance) RemoveMod(idx instance.ModIndex) (string, bool) {
	if int(idx) >= len(e.data.Mods) {
		return "", false
	}
	decl := e.data.Mods[idx]
	path := e.ModDir(decl)

	for name, profile := range e.data.Profiles {
		filtered := make([]instance.ModOrderEntry, 0, len(profile.Order))
		for _, entry := range profile.Order {
			switch {
			case entry.Index == idx:
				continue
			case entry.Index > idx:
				entry.Index--
				fallthrough
			default:
				filtered = append(filtered, entry)
			}
		}
		profile.Order = filtered
		e.data.Profiles[name] = profile
	}

	e.data.Mods = append(e.data.Mods[:idx], e.data.Mods[idx+1:]...)
	e.changed = true
	return path, true
}

// RenameMod renames the on-disk directory (if the mod kind has one) and
// updates the declaration. Any I/O failure is reported and leaves
// in-memory state unchanged.
func (e *Instance) RenameMod(idx instance.ModIndex, newName string) error {
	if int(idx) >= len(e.data.Mods) {
		return fmt.Errorf("mod index %d out of range", idx)
	}
	if err := instance.ValidateName(newName); err != nil {
		return err
	}
	if e.modExists(newName, int(idx)) {
		return ErrAlreadyExists
	}

	decl := e.data.Mods[idx]
	newDecl := instance.ModDeclaration{Name: newName, Kind: decl.Kind}

	if decl.Kind == instance.KindMod {
		oldPath := e.ModDir(decl)
		newPath := e.ModDir(newDecl)
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("rename mod directory: %w", err)
		}
	}

	e.data.Mods[idx] = newDecl
	e.changed = true
	return nil
}

// ToggleModEnabled flips the Enabled flag of the active profile's order
// entry at orderIdx.
func (e *Instance) ToggleModEnabled(orderIdx instance.ModOrderIndex) {
	order := e.Order()
	order[orderIdx].Enabled = !order[orderIdx].Enabled
	e.changed = true
}

// MoveMods reorders the active profile's order so the entries named by
// selection, preserving their mutual order, end up starting at target. It
// returns the new index of the first selected entry.
func (e *Instance) MoveMods(selection []instance.ModOrderIndex, target instance.ModOrderIndex) instance.ModOrderIndex {
	from := make([]int, len(selection))
	for i, s := range selection {
		from[i] = int(s)
	}
	order := e.Order()
	moveMultiple(order, from, int(target))
	e.setOrder(order)
	e.changed = true

	// The smallest selected index always lands at exactly target: sorting
	// the selection and applying Yi = target+i places i=0's item there.
	return target
}

// Save serialises the current instance data and enqueues a write request
// if, and only if, the instance has changed since the last Save. It
// clears the changed flag unconditionally on return if a write was
// enqueued.
func (e *Instance) Save() {
	if !e.changed {
		return
	}

	content, err := e.data.Serialize()
	if err != nil {
		e.log.Error("save: failed to serialize instance data", "error", err)
		return
	}
	e.writer.enqueue(writeRequest{content: content, target: writeTargetInstanceData})
	e.changed = false
}

// InitError reports that a mod's source directory could not be created.
type InitError struct{ Err error }

func (e *InitError) Error() string { return fmt.Sprintf("failed to initialise mod: %v", e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// OpenError wraps any failure to open an editable instance: path
// resolution or loading the instance data file.
type OpenError struct {
	Dir string
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open instance at %q: %v", e.Dir, e.Err)
}
func (e *OpenError) Unwrap() error { return e.Err }
