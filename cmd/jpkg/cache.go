// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/cache"
	"github.com/DuckyScr/jpkg/internal/rlog"
)

const cacheShortHelp = `Inspect or clear the content cache`
const cacheLongHelp = `
Cache exposes the content cache's two administrative operations:

  jpkg cache size   Print the cache's total size in bytes.
  jpkg cache purge  Remove every cached archive and recreate an empty cache.
`

func (cmd *cacheCommand) Name() string      { return "cache" }
func (cmd *cacheCommand) Args() string      { return "size|purge" }
func (cmd *cacheCommand) ShortHelp() string { return cacheShortHelp }
func (cmd *cacheCommand) LongHelp() string  { return cacheLongHelp }
func (cmd *cacheCommand) Register(fs *flag.FlagSet) {}

type cacheCommand struct{}

func (cmd *cacheCommand) Run(cfg jpkg.Config, log *rlog.Logger, args []string) error {
	if len(args) != 1 {
		return errors.Errorf("cache requires exactly one arg: size|purge")
	}

	c, err := cache.Open(cfg.CacheRoot, jpkg.ArchiveExt)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "size":
		size, err := c.TotalSize()
		if err != nil {
			return err
		}
		fmt.Printf("%d bytes\n", size)
		return nil
	case "purge":
		if err := c.Purge(); err != nil {
			return err
		}
		log.LogDepfln("cache purged")
		return nil
	default:
		return errors.Errorf("unknown cache subcommand %q", args[0])
	}
}
