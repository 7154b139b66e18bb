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

package filetree

import (
	"fmt"
	"io"
	"strings"

	"github.com/modkit/mmm/instance"
)

// Display writes a pre-order, indented dump of tree to w, naming each
// file's providers by mod name (via view's mod list) rather than by raw
// index. When conflictsOnly is true, only File nodes with more than one
// provider (and the Dir ancestors needed to reach them) are printed.
func Display(w io.Writer, tree *Tree, view instance.Instance, conflictsOnly bool) error {
	if conflictsOnly && !hasConflict(tree, RootID) {
		return nil
	}
	return display(w, tree, view.Mods(), RootID, 0, conflictsOnly)
}

func hasConflict(tree *Tree, id NodeID) bool {
	node := tree.Node(id)
	if node.Kind == File {
		return len(node.Providers) > 1
	}
	for _, c := range node.Children {
		if hasConflict(tree, c) {
			return true
		}
	}
	return false
}

func display(w io.Writer, tree *Tree, mods []instance.ModDeclaration, id NodeID, depth int, conflictsOnly bool) error {
	node := tree.Node(id)
	indent := strings.Repeat("  ", depth)

	switch node.Kind {
	case Dir:
		if id != RootID {
			if _, err := fmt.Fprintf(w, "%s%s/\n", indent, node.Name); err != nil {
				return err
			}
		}
		for _, c := range node.Children {
			if conflictsOnly && !hasConflict(tree, c) {
				continue
			}
			childDepth := depth
			if id != RootID {
				childDepth++
			}
			if err := display(w, tree, mods, c, childDepth, conflictsOnly); err != nil {
				return err
			}
		}
	case File:
		if conflictsOnly && len(node.Providers) <= 1 {
			return nil
		}
		providers := make([]string, len(node.Providers))
		for i, p := range node.Providers {
			providers[i] = fmt.Sprintf("%q", providerName(mods, p))
		}
		_, err := fmt.Fprintf(w, "%s%s [%s]\n", indent, node.Name, strings.Join(providers, ", "))
		return err
	}
	return nil
}

func providerName(mods []instance.ModDeclaration, idx instance.ModIndex) string {
	if int(idx) < len(mods) {
		return mods[idx].Name
	}
	return fmt.Sprintf("mod#%d", idx)
}
