// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/repoclient"
	"github.com/DuckyScr/jpkg/internal/rlog"
)

const searchShortHelp = `Search the remote repository's index`
const searchLongHelp = `
Search issues a free-text query against the configured search index and
prints up to 20 matching group:artifact coordinates with their latest
version.
`

func (cmd *searchCommand) Name() string      { return "search" }
func (cmd *searchCommand) Args() string      { return "<query>" }
func (cmd *searchCommand) ShortHelp() string { return searchShortHelp }
func (cmd *searchCommand) LongHelp() string  { return searchLongHelp }
func (cmd *searchCommand) Register(fs *flag.FlagSet) {}

type searchCommand struct{}

func (cmd *searchCommand) Run(cfg jpkg.Config, log *rlog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("search requires exactly one arg: <query>")
	}

	client := repoclient.New(cfg.RemoteBase, cfg.SearchBase, cfg.UserAgent, cfg.Timeout)

	results, err := client.Search(context.Background(), args[0])
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s:%s\t%s\n", r.Group, r.Artifact, r.LatestVersion)
	}
	return nil
}
