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

// Package filetree builds the merge tree: the union of every enabled mod's
// directory tree, annotated with the priority-ordered list of mods that
// provide each file.
package filetree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modkit/mmm/instance"
)

// NodeID addresses a node within a Tree. Nodes reference their parent and
// children by NodeID, not by pointer, so the tree is a plain arena (a slice
// of nodes) rather than a pointer graph.
type NodeID int

// NodeKind distinguishes a directory node from a file node.
type NodeKind int

const (
	// Dir is a directory node; it has children but no providers.
	Dir NodeKind = iota
	// File is a leaf node; it has providers but no children.
	File
)

// Node is one entry in a Tree's arena.
type Node struct {
	Name     string
	Kind     NodeKind
	Parent   NodeID
	Children []NodeID

	// Providers lists, in priority order (index 0 is the winning,
	// highest-priority provider), the mods that provide this File node.
	// Empty for Dir nodes.
	Providers []instance.ModIndex
}

// RootID is always the ID of the tree's root node.
const RootID NodeID = 0

// Tree is the merge engine's output: an arena of Nodes rooted at RootID,
// whose root is always a Dir node named ".".
type Tree struct {
	nodes []Node
}

// Node returns the node identified by id.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// Root returns the tree's root node ID.
func (t *Tree) Root() NodeID { return RootID }

// Path returns id's path relative to the root, with path components joined
// by '/'. The root's own path is "".
func (t *Tree) Path(id NodeID) string {
	var parts []string
	for n := id; n != RootID; n = t.nodes[n].Parent {
		parts = append(parts, t.nodes[n].Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func newTree() *Tree {
	return &Tree{nodes: []Node{{Name: ".", Kind: Dir, Parent: RootID}}}
}

func (t *Tree) addChild(parent NodeID, n Node) NodeID {
	n.Parent = parent
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

func (t *Tree) childNamed(parent NodeID, name string) (NodeID, bool) {
	for _, c := range t.nodes[parent].Children {
		if t.nodes[c].Name == name {
			return c, true
		}
	}
	return 0, false
}

// Build walks every enabled, non-separator mod in view's active order, from
// highest priority to lowest, and returns the resulting merge tree. Build
// fails with a *TypeMismatchError if two mods disagree on whether a path is
// a file or a directory.
func Build(view instance.Instance) (*Tree, error) {
	tree := newTree()
	mods := view.Mods()
	order := view.Order()

	for i := len(order) - 1; i >= 0; i-- {
		entry := order[i]
		if !entry.Enabled {
			continue
		}
		if int(entry.Index) >= len(mods) {
			continue
		}
		decl := mods[entry.Index]
		if decl.Kind != instance.KindMod {
			continue
		}

		modDir := view.ModDir(decl)
		if err := walkModDir(tree, entry.Index, modDir, RootID); err != nil {
			return nil, err.withContext(tree, decl, view)
		}
	}

	return tree, nil
}

// walkModDir performs an iterative, stack-based walk of modDir, merging its
// entries into tree starting at node.
func walkModDir(tree *Tree, modIndex instance.ModIndex, modDir string, node NodeID) *unresolvedError {
	type frame struct {
		dir  string
		node NodeID
	}
	stack := []frame{{modDir, node}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(f.dir)
		if err != nil {
			return &unresolvedError{ioErr: err}
		}

		for _, entry := range entries {
			isDir := entry.IsDir()
			childID, existed := tree.childNamed(f.node, entry.Name())

			if !existed {
				if isDir {
					childID = tree.addChild(f.node, Node{Name: entry.Name(), Kind: Dir})
				} else {
					childID = tree.addChild(f.node, Node{
						Name:      entry.Name(),
						Kind:      File,
						Providers: []instance.ModIndex{modIndex},
					})
				}
			} else {
				child := tree.Node(childID)
				switch {
				case child.Kind == Dir && isDir:
					// both directories: nothing to record, just descend.
				case child.Kind == File && !isDir:
					child.Providers = append(child.Providers, modIndex)
				default:
					return &unresolvedError{typeMismatchNode: childID}
				}
			}

			if isDir {
				stack = append(stack, frame{filepath.Join(f.dir, entry.Name()), childID})
			}
		}
	}
	return nil
}

// unresolvedError is the merge walker's internal error representation,
// before it's enriched with the diagnostic naming the conflicting mods.
type unresolvedError struct {
	ioErr            error
	typeMismatchNode NodeID
}

func (u *unresolvedError) withContext(tree *Tree, modDecl instance.ModDeclaration, view instance.Instance) error {
	if u.ioErr != nil {
		return &IOError{Err: u.ioErr}
	}

	node := tree.Node(u.typeMismatchNode)
	existingIsDir := node.Kind == Dir
	relPath := tree.Path(u.typeMismatchNode)

	var conflicting []string
	for _, other := range view.Mods() {
		if other == modDecl || other.Kind != instance.KindMod {
			continue
		}
		otherPath := filepath.Join(view.ModDir(other), relPath)
		info, err := os.Lstat(otherPath)
		if err != nil {
			continue
		}
		if info.IsDir() == existingIsDir {
			conflicting = append(conflicting, other.Name)
		}
	}

	joined := strings.Join(conflicting, "', '")
	var msg string
	if existingIsDir {
		msg = fmt.Sprintf("'%s' is used as both a directory and a file by different mods: it's a file in '%s', but a directory in '%s'",
			relPath, modDecl.Name, joined)
	} else {
		msg = fmt.Sprintf("'%s' is used as both a directory and a file by different mods: it's a directory in '%s', but a file in '%s'",
			relPath, modDecl.Name, joined)
	}
	return &TypeMismatchError{Message: msg}
}

// IOError wraps a filesystem error encountered while walking a mod's
// directory tree.
type IOError struct{ Err error }

func (e *IOError) Error() string { return fmt.Sprintf("failed to read directory: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// TypeMismatchError reports that two mods disagree about whether a path is
// a file or a directory. Message names both the path and the conflicting
// mods.
type TypeMismatchError struct{ Message string }

func (e *TypeMismatchError) Error() string { return e.Message }
