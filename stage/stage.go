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

// Package stage materialises a merge tree onto a fresh tmpfs: one
// directory per Dir node, one absolute symlink to the winning provider per
// File node. The result, the staging tree, is the higher-priority lower
// layer of the overlay mount package sysmount creates over a game's
// installation directory.
package stage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/modkit/mmm/filetree"
	"github.com/modkit/mmm/instance"
	"github.com/modkit/mmm/sysmount"
)

// MkdirError reports that a directory node could not be materialised.
type MkdirError struct {
	Path string
	Err  error
}

func (e *MkdirError) Error() string {
	return fmt.Sprintf("failed to create directory %q: %v", e.Path, e.Err)
}
func (e *MkdirError) Unwrap() error { return e.Err }

// SymlinkError reports that a file node's symlink could not be created.
type SymlinkError struct {
	SourcePath string
	LinkPath   string
	Err        error
}

func (e *SymlinkError) Error() string {
	return fmt.Sprintf("failed to create symlink %q pointing to %q: %v", e.LinkPath, e.SourcePath, e.Err)
}
func (e *SymlinkError) Unwrap() error { return e.Err }

// Handle owns the tmpfs mount backing a staging tree. Unmount tears down
// the mount and removes its backing directory.
type Handle struct {
	mount *sysmount.TmpfsMount
}

// Path is the absolute path of the staging tree's root.
func (h *Handle) Path() string { return h.mount.Path() }

// Unmount tears down the staging tree's tmpfs.
func (h *Handle) Unmount() error { return h.mount.Unmount() }

// Build creates a fresh tmpfs and materialises tree onto it: a directory
// for every Dir node, an absolute symlink to tree's highest-priority
// provider for every File node. On any failure the partial tmpfs is torn
// down before Build returns.
func Build(tree *filetree.Tree, view instance.Instance) (*Handle, error) {
	mount, err := sysmount.NewTmpfs("")
	if err != nil {
		return nil, err
	}

	if err := materialise(tree, view, mount.Path()); err != nil {
		mount.Unmount()
		return nil, err
	}

	return &Handle{mount: mount}, nil
}

func materialise(tree *filetree.Tree, view instance.Instance, stagingRoot string) error {
	mods := view.Mods()

	// Pre-order walk skipping the root: an explicit stack of the root's
	// children, each popped and pushed back together with its own
	// children once visited, so ancestors are always materialised (and
	// their directories created) before descendants.
	type frame struct {
		id       filetree.NodeID
		relative string
	}
	root := tree.Node(tree.Root())
	stack := make([]frame, 0, len(root.Children))
	for i := len(root.Children) - 1; i >= 0; i-- {
		id := root.Children[i]
		stack = append(stack, frame{id: id, relative: tree.Node(id).Name})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := tree.Node(f.id)
		stagingPath := filepath.Join(stagingRoot, f.relative)

		switch node.Kind {
		case filetree.Dir:
			if err := os.Mkdir(stagingPath, 0750); err != nil {
				return &MkdirError{Path: stagingPath, Err: err}
			}
			for i := len(node.Children) - 1; i >= 0; i-- {
				childID := node.Children[i]
				childRel := filepath.Join(f.relative, tree.Node(childID).Name)
				stack = append(stack, frame{id: childID, relative: childRel})
			}
		case filetree.File:
			winner := mods[node.Providers[0]]
			sourcePath := filepath.Join(view.ModDir(winner), f.relative)
			if err := os.Symlink(sourcePath, stagingPath); err != nil {
				return &SymlinkError{SourcePath: sourcePath, LinkPath: stagingPath, Err: err}
			}
		}
	}

	return nil
}
