// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/rlog"
)

const statusShortHelp = `Report whether the lock file is stale against the manifest`
const statusLongHelp = `
Status reads the manifest and lock file and reports, for each manifest
dependency, whether an entry for it exists in the lock file at the
manifest's pinned version. It performs no network I/O and makes no
changes; compare to install, which would bring the lock up to date.
`

func (cmd *statusCommand) Name() string      { return "status" }
func (cmd *statusCommand) Args() string      { return "" }
func (cmd *statusCommand) ShortHelp() string { return statusShortHelp }
func (cmd *statusCommand) LongHelp() string  { return statusLongHelp }
func (cmd *statusCommand) Register(fs *flag.FlagSet) {}

type statusCommand struct{}

func (cmd *statusCommand) Run(cfg jpkg.Config, log *rlog.Logger, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("status takes no positional args, got %v", args)
	}

	manifest, err := jpkg.ReadManifest(cfg)
	if err != nil {
		return err
	}

	seeds, err := manifest.Coordinates()
	if err != nil {
		return err
	}

	lock, err := jpkg.LoadLockFile(cfg)
	if err != nil {
		return err
	}

	stale := false
	for _, c := range seeds {
		locked, ok := lock.Packages[c.String()]
		switch {
		case !ok:
			fmt.Printf("%s: missing from lock file\n", c)
			stale = true
		case locked.Version != c.Version:
			fmt.Printf("%s: lock file has version %s\n", c, locked.Version)
			stale = true
		default:
			fmt.Printf("%s: up to date\n", c)
		}
	}

	if stale {
		return fmt.Errorf("lock file is stale; run jpkg install")
	}
	return nil
}
