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

// Package data implements the persisted, self-describing binary encoding of
// an instance's mods, profiles and mod order (InstanceDataFile, within an
// instance directory), and the verification invariants a decoded value must
// satisfy.
package data

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/modkit/mmm/instance"
)

// InstanceDataFile is the file name of the instance data file within an
// instance's base directory.
const InstanceDataFile = "mmm.cbor"

const dataVersion uint32 = 0

// canonicalEncMode sorts map keys by their encoded bytes (RFC 7049
// canonical order), which is bytewise-lexicographic for the text-string
// profile names this is used for.
var canonicalEncMode = mustEncMode(cbor.CanonicalEncOptions())

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// InstanceData is the decoded, verified content of an instance data file.
type InstanceData struct {
	Mods     []instance.ModDeclaration
	Profiles map[string]instance.Profile
}

type wireEnvelope struct {
	Version  uint32          `cbor:"version"`
	Mods     []instance.ModDeclaration `cbor:"mods"`
	Profiles cbor.RawMessage `cbor:"profiles"`
}

// Serialize encodes d to its persisted binary form. version is emitted
// first, followed by mods, followed by the profiles map with its keys in
// lexicographic ascending order.
func (d *InstanceData) Serialize() ([]byte, error) {
	profilesBytes, err := canonicalEncMode.Marshal(d.Profiles)
	if err != nil {
		return nil, fmt.Errorf("encode profiles: %w", err)
	}
	return cbor.Marshal(wireEnvelope{
		Version:  dataVersion,
		Mods:     d.Mods,
		Profiles: profilesBytes,
	})
}

// Load reads and decodes the instance data file at path, verifying its
// invariants (§3 of the spec).
func Load(path string) (*InstanceData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return decode(raw)
}

func decode(raw []byte) (*InstanceData, error) {
	var fields map[string]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, &DecodeError{Err: err}
	}

	verRaw, ok := fields["version"]
	if !ok {
		return nil, &DecodeError{Err: errors.New("missing \"version\" field")}
	}
	version, err := decodeVersion(verRaw)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if version != dataVersion {
		return nil, &UnsupportedVersionError{Version: version}
	}

	var mods []instance.ModDeclaration
	if modsRaw, ok := fields["mods"]; ok {
		if err := cbor.Unmarshal(modsRaw, &mods); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("decode mods: %w", err)}
		}
	}

	var profiles map[string]instance.Profile
	if profilesRaw, ok := fields["profiles"]; ok {
		if err := cbor.Unmarshal(profilesRaw, &profiles); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("decode profiles: %w", err)}
		}
	}
	if profiles == nil {
		profiles = map[string]instance.Profile{}
	}

	d := &InstanceData{Mods: mods, Profiles: profiles}
	if err := verify(d); err != nil {
		return nil, &InvalidDataError{Err: err}
	}
	return d, nil
}

// decodeVersion accepts any signed or unsigned integer width, rejecting
// values outside [0, 2^32-1].
func decodeVersion(raw cbor.RawMessage) (uint32, error) {
	var v any
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode version: %w", err)
	}
	switch n := v.(type) {
	case uint64:
		if n > 0xffffffff {
			return 0, fmt.Errorf("version %d out of range", n)
		}
		return uint32(n), nil
	case int64:
		if n < 0 || n > 0xffffffff {
			return 0, fmt.Errorf("version %d out of range", n)
		}
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("version field has unexpected type %T", v)
	}
}

func verify(d *InstanceData) error {
	modsLen := len(d.Mods)
	for _, profile := range d.Profiles {
		present := make([]bool, modsLen)
		for _, entry := range profile.Order {
			idx := int(entry.Index)
			if idx < 0 || idx >= modsLen {
				return ErrModIndexOutOfRange
			}
			if present[idx] {
				return ErrDuplicateModIndex
			}
			present[idx] = true
		}
	}
	return nil
}

// ErrDuplicateModIndex is returned by Load when a profile's mod order
// contains the same ModIndex more than once.
var ErrDuplicateModIndex = errors.New("mod order contains duplicate mod indices")

// ErrModIndexOutOfRange is returned by Load when a profile's mod order
// refers to a ModIndex that has no corresponding ModDeclaration.
var ErrModIndexOutOfRange = errors.New("mod order contains out of range mod index")

// OpenError reports that the instance data file could not be opened or read.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open instance data file %q: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// DecodeError reports a generic decode failure, distinct from an
// UnsupportedVersionError or an InvalidDataError.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode instance data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedVersionError reports that the instance data file declares a
// version this implementation does not support.
type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("instance data file contains version %d data, but version %d is expected", e.Version, dataVersion)
}

// InvalidDataError reports that decoded instance data fails a profile
// integrity invariant (see ErrDuplicateModIndex, ErrModIndexOutOfRange).
type InvalidDataError struct {
	Err error
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("instance data file contains invalid data: %v", e.Err)
}

func (e *InvalidDataError) Unwrap() error { return e.Err }
