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
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/modkit/mmm/instance"
	"github.com/modkit/mmm/instance/data"
)

type deploySuite struct {
	dir string
}

var _ = Suite(&deploySuite{})

func (s *deploySuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
	c.Assert(os.MkdirAll(filepath.Join(s.dir, "mods", "m0"), 0750), IsNil)

	d := &data.InstanceData{
		Mods: []instance.ModDeclaration{{Name: "m0", Kind: instance.KindMod}},
		Profiles: map[string]instance.Profile{
			"b-profile": {Order: []instance.ModOrderEntry{{Index: 0, Enabled: true}}},
			"a-profile": {Order: []instance.ModOrderEntry{{Index: 0, Enabled: false}}},
		},
	}
	encoded, err := d.Serialize()
	c.Assert(err, IsNil)
	c.Assert(os.WriteFile(filepath.Join(s.dir, data.InstanceDataFile), encoded, 0644), IsNil)
}

func (s *deploySuite) TestOpenSelectsNamedProfile(c *C) {
	view, err := instance.Open(s.dir, "b-profile")
	c.Assert(err, IsNil)
	c.Check(view.Order()[0].Enabled, Equals, true)
}

func (s *deploySuite) TestOpenFallsBackToLexicographicallyFirstProfile(c *C) {
	view, err := instance.Open(s.dir, "")
	c.Assert(err, IsNil)
	c.Check(view.Order()[0].Enabled, Equals, false) // a-profile, not b-profile
}

func (s *deploySuite) TestOpenUnknownProfile(c *C) {
	_, err := instance.Open(s.dir, "does-not-exist")
	c.Assert(err, FitsTypeOf, &instance.DeployOpenError{})
}

func (s *deploySuite) TestOpenNotADirectory(c *C) {
	file := filepath.Join(s.dir, "plain-file")
	c.Assert(os.WriteFile(file, []byte("x"), 0644), IsNil)

	_, err := instance.Open(file, "")
	c.Assert(err, NotNil)
}

func (s *deploySuite) TestModDirAndBaseDir(c *C) {
	view, err := instance.Open(s.dir, "b-profile")
	c.Assert(err, IsNil)

	resolvedDir, err := filepath.EvalSymlinks(s.dir)
	c.Assert(err, IsNil)
	c.Check(view.BaseDir(), Equals, resolvedDir)
	c.Check(view.ModDir(view.Mods()[0]), Equals, filepath.Join(resolvedDir, "mods", "m0"))
}
