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

package filetree_test

import (
	"bytes"
	"path/filepath"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/modkit/mmm/filetree"
	"github.com/modkit/mmm/instance"
)

func (s *filetreeSuite) buildConflictingTree(c *C) *filetree.Tree {
	s.modDir(c, "A")
	s.modDir(c, "B")
	writeFile(c, filepath.Join(s.root, "mods", "A"), "disjoint.txt")
	writeFile(c, filepath.Join(s.root, "mods", "A"), "cfg.ini")
	writeFile(c, filepath.Join(s.root, "mods", "B"), "cfg.ini")

	view := &fakeView{
		base: s.root,
		mods: []instance.ModDeclaration{{Name: "A"}, {Name: "B"}},
		order: []instance.ModOrderEntry{
			{Index: 0, Enabled: true},
			{Index: 1, Enabled: true},
		},
	}
	tree, err := filetree.Build(view)
	c.Assert(err, IsNil)
	return tree
}

func (s *filetreeSuite) TestDisplayFullShowsEveryFile(c *C) {
	tree := s.buildConflictingTree(c)

	view := &fakeView{
		base: s.root,
		mods: []instance.ModDeclaration{{Name: "A"}, {Name: "B"}},
	}

	var buf bytes.Buffer
	c.Assert(filetree.Display(&buf, tree, view, false), IsNil)

	out := buf.String()
	c.Check(strings.Contains(out, "disjoint.txt"), Equals, true)
	c.Check(strings.Contains(out, "cfg.ini"), Equals, true)
}

func (s *filetreeSuite) TestDisplayNamesProvidersByModName(c *C) {
	tree := s.buildConflictingTree(c)
	view := &fakeView{
		base: s.root,
		mods: []instance.ModDeclaration{{Name: "A"}, {Name: "B"}},
	}

	var buf bytes.Buffer
	c.Assert(filetree.Display(&buf, tree, view, true), IsNil)

	out := buf.String()
	c.Check(strings.Contains(out, `"B"`), Equals, true)
	c.Check(strings.Contains(out, `"A"`), Equals, true)
}

func (s *filetreeSuite) TestDisplayConflictsOnlyHidesUncontested(c *C) {
	tree := s.buildConflictingTree(c)
	view := &fakeView{
		base: s.root,
		mods: []instance.ModDeclaration{{Name: "A"}, {Name: "B"}},
	}

	var buf bytes.Buffer
	c.Assert(filetree.Display(&buf, tree, view, true), IsNil)

	out := buf.String()
	c.Check(strings.Contains(out, "cfg.ini"), Equals, true)
	c.Check(strings.Contains(out, "disjoint.txt"), Equals, false)
}

func (s *filetreeSuite) TestDisplayNoConflictsWritesNothing(c *C) {
	view := &fakeView{base: s.root}
	tree, err := filetree.Build(view)
	c.Assert(err, IsNil)

	var buf bytes.Buffer
	c.Assert(filetree.Display(&buf, tree, view, true), IsNil)
	c.Check(buf.Len(), Equals, 0)
}
