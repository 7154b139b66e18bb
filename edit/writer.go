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

package edit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/modkit/mmm/instance/data"
)

// writeTarget names the file a writeRequest is destined for. InstanceData
// is currently the only target; the enum exists so the worker's request
// shape doesn't need to change if a second persisted file is ever added.
type writeTarget int

const writeTargetInstanceData writeTarget = iota

type writeRequest struct {
	content []byte
	target  writeTarget
}

// writerQueueSize bounds the persistence worker's request channel. The
// editor's own Save coalesces nothing (every Save that finds changes
// enqueues its own request), but a bound avoids an unbounded backlog if
// the worker ever falls behind.
const writerQueueSize = 8

// writer is the instance directory's single dedicated persistence
// goroutine: only it ever writes the instance data file, always via a
// create-write-fsync-close-rename sequence so a crash mid-write never
// corrupts the previous, still-renamed-over, version.
type writer struct {
	dataPath    string
	dataTmpPath string
	requests    chan writeRequest
	log         *slog.Logger
}

func spawnWriter(instanceDir string, log *slog.Logger) *writer {
	if log == nil {
		log = slog.Default()
	}
	dataPath := filepath.Join(instanceDir, data.InstanceDataFile)
	w := &writer{
		dataPath:    dataPath,
		dataTmpPath: dataPath + ".tmp",
		requests:    make(chan writeRequest, writerQueueSize),
		log:         log,
	}
	go w.run()
	return w
}

func (w *writer) run() {
	for req := range w.requests {
		if err := w.handle(req); err != nil {
			w.log.Error("persistence worker: write failed", "path", w.pathFor(req.target), "error", err)
		}
	}
}

func (w *writer) pathFor(target writeTarget) string {
	switch target {
	case writeTargetInstanceData:
		return w.dataPath
	default:
		return ""
	}
}

func (w *writer) handle(req writeRequest) error {
	path := w.pathFor(req.target)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", tmpPath, err)
	}

	if _, err := f.Write(req.content); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync %q: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %q over %q: %w", tmpPath, path, err)
	}
	return nil
}

// enqueue submits req for writing. It blocks if the worker has fallen far
// enough behind to fill writerQueueSize requests; that backpressure is
// correct here, since the contract is strict FIFO delivery with no
// coalescing.
func (w *writer) enqueue(req writeRequest) {
	w.requests <- req
}
