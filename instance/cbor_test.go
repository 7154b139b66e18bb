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

package instance_test

import (
	"github.com/fxamacker/cbor/v2"
	. "gopkg.in/check.v1"

	"github.com/modkit/mmm/instance"
)

type cborSuite struct{}

var _ = Suite(&cborSuite{})

func (s *cborSuite) TestModOrderEntryEnabledIsBareInteger(c *C) {
	entry := instance.ModOrderEntry{Index: 7, Enabled: true}
	encoded, err := cbor.Marshal(entry)
	c.Assert(err, IsNil)

	var asUint uint32
	c.Assert(cbor.Unmarshal(encoded, &asUint), IsNil)
	c.Check(asUint, Equals, uint32(7))

	var decoded instance.ModOrderEntry
	c.Assert(cbor.Unmarshal(encoded, &decoded), IsNil)
	c.Check(decoded, Equals, entry)
}

func (s *cborSuite) TestModOrderEntryDisabledIsMap(c *C) {
	entry := instance.ModOrderEntry{Index: 3, Enabled: false}
	encoded, err := cbor.Marshal(entry)
	c.Assert(err, IsNil)

	var asMap map[string]any
	c.Assert(cbor.Unmarshal(encoded, &asMap), IsNil)
	c.Check(asMap["e"], Equals, false)

	var decoded instance.ModOrderEntry
	c.Assert(cbor.Unmarshal(encoded, &decoded), IsNil)
	c.Check(decoded, Equals, entry)
}

func (s *cborSuite) TestModDeclarationModIsBareString(c *C) {
	decl := instance.ModDeclaration{Name: "my-mod", Kind: instance.KindMod}
	encoded, err := cbor.Marshal(decl)
	c.Assert(err, IsNil)

	var asString string
	c.Assert(cbor.Unmarshal(encoded, &asString), IsNil)
	c.Check(asString, Equals, "my-mod")

	var decoded instance.ModDeclaration
	c.Assert(cbor.Unmarshal(encoded, &decoded), IsNil)
	c.Check(decoded, Equals, decl)
}

func (s *cborSuite) TestModDeclarationSeparatorIsMap(c *C) {
	decl := instance.ModDeclaration{Name: "---", Kind: instance.KindSeparator}
	encoded, err := cbor.Marshal(decl)
	c.Assert(err, IsNil)

	var decoded instance.ModDeclaration
	c.Assert(cbor.Unmarshal(encoded, &decoded), IsNil)
	c.Check(decoded, Equals, decl)
}

func (s *cborSuite) TestModOrderEntryRejectsOutOfRangeIndex(c *C) {
	encoded, err := cbor.Marshal(uint64(1) << 40)
	c.Assert(err, IsNil)

	var decoded instance.ModOrderEntry
	c.Check(cbor.Unmarshal(encoded, &decoded), NotNil)
}
