// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/rlog"
)

const initShortHelp = `Write a starter manifest at the project root`
const initLongHelp = `
Init writes a starter jpkg.json manifest at the project root: a package
identity block and an empty dependencies map. It refuses to overwrite an
existing manifest.
`

func (cmd *initCommand) Name() string      { return "init" }
func (cmd *initCommand) Args() string      { return "<name> <version>" }
func (cmd *initCommand) ShortHelp() string { return initShortHelp }
func (cmd *initCommand) LongHelp() string  { return initLongHelp }
func (cmd *initCommand) Register(fs *flag.FlagSet) {}

type initCommand struct{}

func (cmd *initCommand) Run(cfg jpkg.Config, log *rlog.Logger, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("init requires exactly two args: <name> <version>")
	}

	if _, err := os.Stat(cfg.ManifestPath()); err == nil {
		return fmt.Errorf("manifest already exists at %s", cfg.ManifestPath())
	}

	if err := os.MkdirAll(filepath.Dir(cfg.ManifestPath()), 0o755); err != nil {
		return err
	}

	m := jpkg.NewManifest(args[0], args[1])
	if err := m.Write(cfg); err != nil {
		return err
	}

	log.LogDepfln("wrote manifest %s", cfg.ManifestPath())
	return nil
}
