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

// Package sysmount drives the Linux fsopen/fsconfig/fsmount/move_mount
// mount API to create a private tmpfs and to union it with a game's
// installation directory via overlayfs. Every privileged syscall runs
// underneath a capguard.Elevated guard, and every target directory is
// opened with the OpenNoFollow ownership-check idiom before it is ever
// touched, mirroring the privileged-mount-target validation the teacher's
// cmd/snap-update-ns applies before a bind mount.
package sysmount

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/modkit/mmm/sysmount/capguard"
)

const mountAttrs = unix.MOUNT_ATTR_NODEV | unix.MOUNT_ATTR_NOSUID | unix.MOUNT_ATTR_NOATIME

// OpenError reports that a mount target directory could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string { return fmt.Sprintf("failed to open %q: %v", e.Path, e.Err) }
func (e *OpenError) Unwrap() error { return e.Err }

// FstatError reports that fstat on an opened mount target failed.
type FstatError struct {
	Path string
	Err  error
}

func (e *FstatError) Error() string { return fmt.Sprintf("failed to fstat %q: %v", e.Path, e.Err) }
func (e *FstatError) Unwrap() error { return e.Err }

// NotOwnedError reports that a mount target is not owned by the calling
// user, so it's refused as a mount point.
type NotOwnedError struct{ Path string }

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("%q is not owned by the current user", e.Path)
}

// FsOpenError, FsConfigSetError, FsConfigCreateError, FsMountError and
// MoveMountError each wrap the errno from the matching fscontext syscall.
type (
	FsOpenError        struct{ Err error }
	FsConfigSetError   struct{ Err error }
	FsConfigCreateError struct{ Err error }
	FsMountError       struct{ Err error }
	MoveMountError     struct{ Err error }
)

func (e *FsOpenError) Error() string         { return fmt.Sprintf("fsopen failed: %v", e.Err) }
func (e *FsOpenError) Unwrap() error         { return e.Err }
func (e *FsConfigSetError) Error() string    { return fmt.Sprintf("fsconfig_set_string failed: %v", e.Err) }
func (e *FsConfigSetError) Unwrap() error    { return e.Err }
func (e *FsConfigCreateError) Error() string { return fmt.Sprintf("fsconfig_create failed: %v", e.Err) }
func (e *FsConfigCreateError) Unwrap() error { return e.Err }
func (e *FsMountError) Error() string        { return fmt.Sprintf("fsmount failed: %v", e.Err) }
func (e *FsMountError) Unwrap() error        { return e.Err }
func (e *MoveMountError) Error() string      { return fmt.Sprintf("move_mount failed: %v", e.Err) }
func (e *MoveMountError) Unwrap() error      { return e.Err }

// TempDirCreateError reports that the staging tmpfs's backing directory
// could not be created.
type TempDirCreateError struct{ Err error }

func (e *TempDirCreateError) Error() string {
	return fmt.Sprintf("failed to create temporary directory: %v", e.Err)
}
func (e *TempDirCreateError) Unwrap() error { return e.Err }

// TempDirCloseError reports that the staging tmpfs's backing directory
// could not be removed after unmounting.
type TempDirCloseError struct{ Err error }

func (e *TempDirCloseError) Error() string {
	return fmt.Sprintf("failed to delete temporary directory: %v", e.Err)
}
func (e *TempDirCloseError) Unwrap() error { return e.Err }

// openOwned opens path with O_PATH|O_DIRECTORY|O_NOFOLLOW and verifies,
// via fstat, that it's owned by the calling user. It never follows a
// symlink at path and never dereferences anything beneath it.
func openOwned(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_PATH|unix.O_DIRECTORY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return -1, &OpenError{Path: path, Err: err}
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return -1, &FstatError{Path: path, Err: err}
	}
	if st.Uid != uint32(os.Getuid()) {
		unix.Close(fd)
		return -1, &NotOwnedError{Path: path}
	}
	return fd, nil
}

func mountTmpfs(dirFD int) error {
	fsFD, err := unix.Fsopen("tmpfs", unix.FSOPEN_CLOEXEC)
	if err != nil {
		return &FsOpenError{Err: err}
	}
	defer unix.Close(fsFD)

	uid := fmt.Sprintf("%d", os.Getuid())
	gid := fmt.Sprintf("%d", os.Getgid())
	for _, kv := range [][2]string{
		{"source", "tmpfs"},
		{"uid", uid},
		{"gid", gid},
		{"mode", "750"},
	} {
		if err := unix.FsconfigSetString(fsFD, kv[0], kv[1]); err != nil {
			return &FsConfigSetError{Err: err}
		}
	}
	if err := unix.FsconfigCreate(fsFD); err != nil {
		return &FsConfigCreateError{Err: err}
	}

	mfd, err := unix.Fsmount(fsFD, unix.FSMOUNT_CLOEXEC, mountAttrs)
	if err != nil {
		return &FsMountError{Err: err}
	}
	defer unix.Close(mfd)

	if err := unix.MoveMount(mfd, "", dirFD, "", unix.MOVE_MOUNT_F_EMPTY_PATH); err != nil {
		return &MoveMountError{Err: err}
	}
	return nil
}

func mountOverlay(stagingPath, gamePath string, gameFD int) error {
	fsFD, err := unix.Fsopen("overlay", unix.FSOPEN_CLOEXEC)
	if err != nil {
		return &FsOpenError{Err: err}
	}
	defer unix.Close(fsFD)

	for _, kv := range [][2]string{
		{"source", "overlay"},
		{"lowerdir+", stagingPath},
		{"lowerdir+", gamePath},
	} {
		if err := unix.FsconfigSetString(fsFD, kv[0], kv[1]); err != nil {
			return &FsConfigSetError{Err: err}
		}
	}
	if err := unix.FsconfigCreate(fsFD); err != nil {
		return &FsConfigCreateError{Err: err}
	}

	mfd, err := unix.Fsmount(fsFD, unix.FSMOUNT_CLOEXEC, mountAttrs)
	if err != nil {
		return &FsMountError{Err: err}
	}
	defer unix.Close(mfd)

	if err := unix.MoveMount(mfd, "", gameFD, "", unix.MOVE_MOUNT_F_EMPTY_PATH); err != nil {
		return &MoveMountError{Err: err}
	}
	return nil
}

func unmount(path string) error {
	return unix.Unmount(path, unix.MNT_DETACH|unix.UMOUNT_NOFOLLOW)
}

// TmpfsMount owns a freshly created, privately mounted tmpfs directory. It
// is the backing store for the staging materialiser.
type TmpfsMount struct {
	path      string
	unmounted bool
}

// NewTmpfs creates a fresh backing directory under parentDir (os.TempDir
// if parentDir is empty) and mounts a private tmpfs on it, owned by the
// calling user, mode 0750, with nodev,nosuid,noatime.
func NewTmpfs(parentDir string) (*TmpfsMount, error) {
	dir, err := os.MkdirTemp(parentDir, "mmm-")
	if err != nil {
		return nil, &TempDirCreateError{Err: err}
	}

	dirFD, err := openOwned(dir)
	if err != nil {
		os.Remove(dir)
		return nil, err
	}
	defer unix.Close(dirFD)

	guard, err := capguard.Raise()
	if err != nil {
		os.Remove(dir)
		return nil, err
	}
	mountErr := mountTmpfs(dirFD)
	guard.Release()
	if mountErr != nil {
		os.Remove(dir)
		return nil, mountErr
	}

	m := &TmpfsMount{path: dir}
	runtime.SetFinalizer(m, func(m *TmpfsMount) { m.bestEffortUnmount() })
	return m, nil
}

// Path is the absolute path of the mounted tmpfs.
func (m *TmpfsMount) Path() string { return m.path }

// Unmount unmounts the tmpfs and removes its backing directory. It is an
// error to call Unmount more than once.
func (m *TmpfsMount) Unmount() error {
	guard, err := capguard.Raise()
	if err != nil {
		return err
	}
	unmountErr := unmount(m.path)
	guard.Release()
	if unmountErr != nil {
		return fmt.Errorf("unmount %q: %w", m.path, unmountErr)
	}
	m.unmounted = true
	runtime.SetFinalizer(m, nil)

	if err := os.Remove(m.path); err != nil {
		return &TempDirCloseError{Err: err}
	}
	return nil
}

func (m *TmpfsMount) bestEffortUnmount() {
	if m.unmounted {
		return
	}
	guard, err := capguard.Raise()
	if err != nil {
		return
	}
	_ = unmount(m.path)
	guard.Release()
	os.Remove(m.path)
}

// OverlayMount owns a union mount of a staging tree over a game's
// installation directory.
type OverlayMount struct {
	path      string
	unmounted bool
}

// NewOverlay mounts an overlay at gamePath whose lowerdir stack is, in
// priority order, stagingPath (wins) then gamePath (loses). Both paths
// must be absolute. gamePath must be owned by the calling user.
func NewOverlay(stagingPath, gamePath string) (*OverlayMount, error) {
	gameFD, err := openOwned(gamePath)
	if err != nil {
		return nil, err
	}
	defer unix.Close(gameFD)

	guard, err := capguard.Raise()
	if err != nil {
		return nil, err
	}
	mountErr := mountOverlay(stagingPath, gamePath, gameFD)
	guard.Release()
	if mountErr != nil {
		return nil, mountErr
	}

	m := &OverlayMount{path: gamePath}
	runtime.SetFinalizer(m, func(m *OverlayMount) { m.bestEffortUnmount() })
	return m, nil
}

// Path is the absolute path the overlay is mounted at (the game directory).
func (m *OverlayMount) Path() string { return m.path }

// Unmount unmounts the overlay. It is an error to call Unmount more than
// once.
func (m *OverlayMount) Unmount() error {
	guard, err := capguard.Raise()
	if err != nil {
		return err
	}
	unmountErr := unmount(m.path)
	guard.Release()
	if unmountErr != nil {
		return fmt.Errorf("unmount %q: %w", m.path, unmountErr)
	}
	m.unmounted = true
	runtime.SetFinalizer(m, nil)
	return nil
}

func (m *OverlayMount) bestEffortUnmount() {
	if m.unmounted {
		return
	}
	guard, err := capguard.Raise()
	if err != nil {
		return
	}
	_ = unmount(m.path)
	guard.Release()
}
