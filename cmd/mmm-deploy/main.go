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

// Command mmm-deploy builds a mod overlay over a game's installation
// directory and, depending on the caller's flags, either launches the
// game under the resulting view or holds the mount open until
// interrupted.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/modkit/mmm/filetree"
	"github.com/modkit/mmm/instance"
	"github.com/modkit/mmm/stage"
	"github.com/modkit/mmm/sysmount"
	"github.com/modkit/mmm/sysmount/capguard"
	"github.com/modkit/mmm/sysmount/freezer"
	"github.com/modkit/mmm/sysmount/nsenter"
)

const (
	mountMethodDirect        = "direct"
	mountMethodUserNamespace = "user-namespace"
)

type options struct {
	MountMethod string `short:"m" long:"mount-method" choice:"direct" choice:"user-namespace" default:"direct"`
	Exec        string `short:"x" long:"exec" description:"game executable to launch under the overlay"`
	Profile     string `short:"p" long:"profile" description:"select a non-default profile"`

	Positional struct {
		InstancePath string `positional-arg-name:"instance-path" required:"yes"`
		GamePath     string `positional-arg-name:"game-path" required:"yes"`
	} `positional-args:"yes"`
}

func main() {
	os.Exit(run())
}

func run() int {
	log := slog.Default()

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opts.MountMethod == mountMethodUserNamespace && opts.Exec == "" {
		fmt.Fprintln(os.Stderr, "--exec is required when using user namespaces")
		return 1
	}

	if err := capguard.Init(); err != nil {
		// Without the permitted capability, user-namespace mode still
		// works: nsenter.Enter gains CAP_SYS_ADMIN inside the namespace.
		if err != capguard.ErrMissingPermitted || opts.MountMethod != mountMethodUserNamespace {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	view, err := instance.Open(opts.Positional.InstancePath, opts.Profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open instance:", err)
		return 1
	}

	tree, err := filetree.Build(view)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build merge tree:", err)
		return 1
	}
	if err := filetree.Display(os.Stdout, tree, view, true); err != nil {
		log.Warn("failed to print merge tree", "error", err)
	}

	if opts.MountMethod == mountMethodUserNamespace {
		// Enter locks this goroutine to its OS thread for the rest of the
		// process's life. Everything below here — staging, the overlay
		// mount, and the game exec — must stay on this same goroutine, or
		// it silently runs outside the namespace Enter just created.
		if err := nsenter.Enter(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to enter user namespace:", err)
			return 1
		}
	}

	stagingHandle, err := stage.Build(tree, view)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build staging tree:", err)
		return 2
	}
	fmt.Printf("Built staging tree at %q\n", stagingHandle.Path())

	gamePath, err := filepath.Abs(opts.Positional.GamePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to resolve game path:", err)
		stagingHandle.Unmount()
		return 2
	}
	gamePath, err = filepath.EvalSymlinks(gamePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to canonicalize game path:", err)
		stagingHandle.Unmount()
		return 2
	}

	overlay, err := sysmount.NewOverlay(stagingHandle.Path(), gamePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to mount overlay:", err)
		stagingHandle.Unmount()
		return 2
	}
	fmt.Printf("Mounted overlay over %q\n", overlay.Path())

	if opts.Exec != "" {
		runGame(log, opts.Exec, gamePath)
	} else {
		fmt.Println("\nPress Control+C to unmount the overlay")
		waitForInterrupt()
	}

	// Freeze whatever's running under the game's cgroup (if one exists) so
	// nothing is mid-syscall against the staging tree's files while the
	// overlay serving them disappears underneath it; thaw once both
	// unmounts are done. FreezeProcesses/ThawProcesses are silent no-ops
	// when no such cgroup exists, which is the common case outside a
	// confinement setup that creates one.
	cgroupName := filepath.Base(view.BaseDir())
	if err := freezer.FreezeProcesses(cgroupName); err != nil {
		log.Warn("failed to freeze game cgroup", "cgroup", cgroupName, "error", err)
	}

	if err := overlay.Unmount(); err != nil {
		fmt.Fprintln(os.Stderr, "unmounting overlay failed:", err)
		return 3
	}
	if err := stagingHandle.Unmount(); err != nil {
		fmt.Fprintln(os.Stderr, "unmounting staging tree failed:", err)
		return 3
	}

	if err := freezer.ThawProcesses(cgroupName); err != nil {
		log.Warn("failed to thaw game cgroup", "cgroup", cgroupName, "error", err)
	}

	fmt.Println("\nUnmount successful")
	return 0
}

func runGame(log *slog.Logger, exe, gamePath string) {
	if !filepath.IsAbs(exe) {
		exe = filepath.Join(gamePath, exe)
	}

	cmd := exec.Command(exe)
	cmd.Dir = filepath.Dir(exe)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("\nWaiting for %s to exit\n", filepath.Base(exe))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			log.Error("game exited with a nonzero status", "exe", exe, "code", exitErr.ExitCode())
			return
		}
		log.Error("failed to execute game", "exe", exe, "error", err)
	}
}

// waitForInterrupt blocks until SIGINT is delivered. Signal delivery is
// funneled through os/signal's internal self-pipe so the wait below is
// interruptible deterministically, without racing signal-safety rules.
func waitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	<-ch
	signal.Stop(ch)
}
