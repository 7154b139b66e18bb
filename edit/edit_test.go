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

package edit_test

import (
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"

	"github.com/modkit/mmm/edit"
	"github.com/modkit/mmm/instance"
	"github.com/modkit/mmm/instance/data"
)

type editSuite struct {
	dir string
}

var _ = Suite(&editSuite{})

func (s *editSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
	c.Assert(os.MkdirAll(filepath.Join(s.dir, "mods", "m0"), 0750), IsNil)
	c.Assert(os.MkdirAll(filepath.Join(s.dir, "mods", "m1"), 0750), IsNil)

	d := &data.InstanceData{
		Mods: []instance.ModDeclaration{
			{Name: "m0", Kind: instance.KindMod},
			{Name: "m1", Kind: instance.KindMod},
		},
		Profiles: map[string]instance.Profile{
			"default": {
				DisplayName: "Default",
				Order: []instance.ModOrderEntry{
					{Index: 0, Enabled: true},
					{Index: 1, Enabled: false},
				},
			},
		},
	}
	encoded, err := d.Serialize()
	c.Assert(err, IsNil)
	c.Assert(os.WriteFile(filepath.Join(s.dir, data.InstanceDataFile), encoded, 0644), IsNil)
}

func (s *editSuite) open(c *C) *edit.Instance {
	inst, err := edit.Open(s.dir, nil)
	c.Assert(err, IsNil)
	return inst
}

func (s *editSuite) TestOpenAddsMissingModsToOrder(c *C) {
	// Rewrite the fixture so the default profile's order omits m0.
	d := &data.InstanceData{
		Mods: []instance.ModDeclaration{
			{Name: "m0", Kind: instance.KindMod},
			{Name: "m1", Kind: instance.KindMod},
		},
		Profiles: map[string]instance.Profile{
			"default": {Order: []instance.ModOrderEntry{{Index: 1, Enabled: true}}},
		},
	}
	encoded, err := d.Serialize()
	c.Assert(err, IsNil)
	c.Assert(os.WriteFile(filepath.Join(s.dir, data.InstanceDataFile), encoded, 0644), IsNil)

	inst := s.open(c)
	c.Check(len(inst.Order()), Equals, 2)
	c.Check(inst.Order()[1], Equals, instance.ModOrderEntry{Index: 0, Enabled: false})
}

func (s *editSuite) TestCreateMod(c *C) {
	inst := s.open(c)
	c.Assert(inst.CreateMod("m2", instance.KindMod), IsNil)

	c.Check(len(inst.Mods()), Equals, 3)
	c.Check(len(inst.Order()), Equals, 3)

	info, err := os.Stat(inst.ModDir(inst.Mods()[2]))
	c.Assert(err, IsNil)
	c.Check(info.IsDir(), Equals, true)
}

func (s *editSuite) TestCreateModAlreadyExists(c *C) {
	inst := s.open(c)
	err := inst.CreateMod("m0", instance.KindMod)
	c.Assert(err, Equals, edit.ErrAlreadyExists)
}

func (s *editSuite) TestRemoveModDecrementsSurvivingIndices(c *C) {
	inst := s.open(c)
	c.Assert(inst.CreateMod("m2", instance.KindMod), IsNil)

	path, ok := inst.RemoveMod(0)
	c.Assert(ok, Equals, true)
	c.Check(path, Equals, filepath.Join(s.dir, "mods", "m0"))

	c.Check(len(inst.Mods()), Equals, 2)
	c.Check(inst.Mods()[0].Name, Equals, "m1")

	for _, entry := range inst.Order() {
		c.Check(entry.Index < instance.ModIndex(len(inst.Mods())), Equals, true)
	}
}

func (s *editSuite) TestRenameMod(c *C) {
	inst := s.open(c)
	c.Assert(inst.RenameMod(0, "renamed"), IsNil)
	c.Check(inst.Mods()[0].Name, Equals, "renamed")

	_, err := os.Stat(filepath.Join(s.dir, "mods", "renamed"))
	c.Assert(err, IsNil)
}

func (s *editSuite) TestRenameModCollision(c *C) {
	inst := s.open(c)
	err := inst.RenameMod(0, "m1")
	c.Assert(err, Equals, edit.ErrAlreadyExists)
}

func (s *editSuite) TestToggleModEnabled(c *C) {
	inst := s.open(c)
	before := inst.Order()[0].Enabled
	inst.ToggleModEnabled(0)
	c.Check(inst.Order()[0].Enabled, Equals, !before)
}

func (s *editSuite) TestAddProfileTrimsAndReturnsKey(c *C) {
	inst := s.open(c)
	key := inst.AddProfile("  Hardcore  ")
	c.Check(key, Equals, "Hardcore")
}

func (s *editSuite) TestAddProfileSuffixesOnCollision(c *C) {
	inst := s.open(c)
	first := inst.AddProfile("Hardcore")
	second := inst.AddProfile("Hardcore")
	c.Check(first, Equals, "Hardcore")
	c.Check(second, Not(Equals), first)
}

func (s *editSuite) TestSaveWritesFileWhenChanged(c *C) {
	inst := s.open(c)
	c.Assert(inst.CreateMod("m2", instance.KindMod), IsNil)
	inst.Save()

	path := filepath.Join(s.dir, data.InstanceDataFile)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d, err := data.Load(path)
		if err == nil && len(d.Mods) == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Fatal("instance data file was not updated by the persistence worker in time")
}

func (s *editSuite) TestMoveMods(c *C) {
	inst := s.open(c)
	for i := 0; i < 8; i++ {
		c.Assert(inst.CreateMod(string(rune('a'+i)), instance.KindSeparator), IsNil)
	}
	// order now has 10 entries: [0..10) by construction (CreateMod appends
	// each new entry in ascending index order).
	newFirst := inst.MoveMods([]instance.ModOrderIndex{1, 3, 8}, 5)
	c.Check(newFirst, Equals, instance.ModOrderIndex(5))

	got := make([]instance.ModIndex, len(inst.Order()))
	for i, e := range inst.Order() {
		got[i] = e.Index
	}
	want := []instance.ModIndex{0, 2, 4, 5, 6, 1, 3, 8, 7, 9}
	c.Check(got, DeepEquals, want)
}
