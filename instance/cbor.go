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

	"github.com/fxamacker/cbor/v2"
)

// MarshalCBOR implements cbor.Marshaler. A ModOrderEntry with Enabled==true
// is emitted as a bare unsigned integer equal to its index; otherwise it's
// emitted as a map {"i": index, "e": false}, matching the compact
// representation the instance data format requires (§4.1 of the spec).
func (e ModOrderEntry) MarshalCBOR() ([]byte, error) {
	if e.Enabled {
		return cbor.Marshal(uint32(e.Index))
	}
	return cbor.Marshal(struct {
		I ModIndex `cbor:"i"`
		E bool     `cbor:"e"`
	}{e.Index, false})
}

// UnmarshalCBOR implements cbor.Unmarshaler, accepting either the bare
// integer form (any signed or unsigned width, rejecting out-of-range
// values) or the {"i","e"} map form.
func (e *ModOrderEntry) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode mod order entry: %w", err)
	}
	switch v := raw.(type) {
	case uint64:
		idx, err := toModIndex(v)
		if err != nil {
			return err
		}
		*e = ModOrderEntry{Index: idx, Enabled: true}
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("mod index %d out of range", v)
		}
		idx, err := toModIndex(uint64(v))
		if err != nil {
			return err
		}
		*e = ModOrderEntry{Index: idx, Enabled: true}
		return nil
	case map[any]any:
		idxVal, ok := v["i"]
		if !ok {
			return fmt.Errorf("mod order entry: missing field \"i\"")
		}
		enabledVal, ok := v["e"]
		if !ok {
			return fmt.Errorf("mod order entry: missing field \"e\"")
		}
		idx, err := anyToModIndex(idxVal)
		if err != nil {
			return err
		}
		enabled, ok := enabledVal.(bool)
		if !ok {
			return fmt.Errorf("mod order entry: field \"e\" is not a boolean")
		}
		*e = ModOrderEntry{Index: idx, Enabled: enabled}
		return nil
	default:
		return fmt.Errorf("mod order entry: unexpected CBOR shape %T", raw)
	}
}

func anyToModIndex(v any) (ModIndex, error) {
	switch n := v.(type) {
	case uint64:
		return toModIndex(n)
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("mod index %d out of range", n)
		}
		return toModIndex(uint64(n))
	default:
		return 0, fmt.Errorf("mod index has unexpected type %T", v)
	}
}

func toModIndex(v uint64) (ModIndex, error) {
	if v > 0xffffffff {
		return 0, fmt.Errorf("mod index %d out of range", v)
	}
	return ModIndex(v), nil
}

// MarshalCBOR implements cbor.Marshaler. A ModDeclaration with
// Kind==KindMod is emitted as the bare name string; otherwise as a map
// {"name": ..., "type": ...} (§4.1 of the spec).
func (d ModDeclaration) MarshalCBOR() ([]byte, error) {
	if d.Kind == KindMod {
		return cbor.Marshal(d.Name)
	}
	return cbor.Marshal(struct {
		Name string `cbor:"name"`
		Type string `cbor:"type"`
	}{d.Name, d.Kind.String()})
}

// UnmarshalCBOR implements cbor.Unmarshaler, accepting either the bare
// string form or the {"name","type"} map form.
func (d *ModDeclaration) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode mod declaration: %w", err)
	}
	switch v := raw.(type) {
	case string:
		*d = ModDeclaration{Name: v, Kind: KindMod}
		return nil
	case map[any]any:
		nameVal, ok := v["name"]
		if !ok {
			return fmt.Errorf("mod declaration: missing field \"name\"")
		}
		name, ok := nameVal.(string)
		if !ok {
			return fmt.Errorf("mod declaration: field \"name\" is not a string")
		}
		typeVal, ok := v["type"]
		if !ok {
			return fmt.Errorf("mod declaration: missing field \"type\"")
		}
		typeStr, ok := typeVal.(string)
		if !ok {
			return fmt.Errorf("mod declaration: field \"type\" is not a string")
		}
		kind, err := parseModEntryKind(typeStr)
		if err != nil {
			return err
		}
		*d = ModDeclaration{Name: name, Kind: kind}
		return nil
	default:
		return fmt.Errorf("mod declaration: unexpected CBOR shape %T", raw)
	}
}

func parseModEntryKind(s string) (ModEntryKind, error) {
	switch s {
	case "mod":
		return KindMod, nil
	case "separator":
		return KindSeparator, nil
	default:
		return 0, fmt.Errorf("mod declaration: unknown type %q", s)
	}
}
