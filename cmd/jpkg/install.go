// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/DuckyScr/jpkg"
	"github.com/DuckyScr/jpkg/internal/cache"
	"github.com/DuckyScr/jpkg/internal/coordinate"
	"github.com/DuckyScr/jpkg/internal/installer"
	"github.com/DuckyScr/jpkg/internal/repoclient"
	"github.com/DuckyScr/jpkg/internal/resolver"
	"github.com/DuckyScr/jpkg/internal/rlog"
)

const installShortHelp = `Resolve and install the manifest's dependencies`
const installLongHelp = `
Install reads the manifest, resolves its transitive dependency graph
against the remote repository, installs every selected artifact into
lib/, and writes the updated lock file.

With -frozen, every selected archive found in the cache must match its
recorded lock-file checksum; a mismatch is an error. A cache miss is
still downloaded unless -offline is also given.

With -offline, a cache miss is an error instead of triggering a download.
`

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "[--frozen] [--offline]" }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.frozen, "frozen", false, "verify cached archives against the lock file")
	fs.BoolVar(&cmd.offline, "offline", false, "fail on a cache miss instead of downloading")
	fs.BoolVar(&cmd.dedupe, "dedupe", false, "keep only the highest version per group:artifact")
	fs.BoolVar(&cmd.prefetch, "prefetch", false, "prefetch resolver descriptors concurrently")
}

type installCommand struct {
	frozen   bool
	offline  bool
	dedupe   bool
	prefetch bool
}

func (cmd *installCommand) Run(cfg jpkg.Config, log *rlog.Logger, args []string) error {
	if len(args) > 0 {
		return errors.Errorf("install takes no positional args, got %v", args)
	}

	manifest, err := jpkg.ReadManifest(cfg)
	if err != nil {
		return err
	}

	seeds, err := manifest.Coordinates()
	if err != nil {
		return err
	}

	client := repoclient.New(cfg.RemoteBase, cfg.SearchBase, cfg.UserAgent, cfg.Timeout)

	c, err := cache.Open(cfg.CacheRoot, jpkg.ArchiveExt)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()

	r := resolver.New(func(ctx context.Context, coord coordinate.Coordinate) (*repoclient.Descriptor, error) {
		return client.FetchDescriptor(ctx, coord, jpkg.DescriptorExt)
	})
	r.Dedupe = cmd.dedupe
	r.Prefetch = cmd.prefetch

	log.Tracef("resolving %d root dependencies", len(seeds))
	selected, err := r.Resolve(ctx, seeds)
	if err != nil {
		return err
	}
	log.Tracef("selected %d coordinates", len(selected))

	lock, err := jpkg.LoadLockFile(cfg)
	if err != nil {
		return err
	}

	in := &installer.Installer{
		Client:       client,
		Cache:        c,
		Lock:         lock,
		Log:          log,
		Parallelism:  cfg.Parallelism,
		Frozen:       cmd.frozen,
		Offline:      cmd.offline,
		ArchiveExt:   jpkg.ArchiveExt,
		LibDir:       cfg.LibDir(),
		Dependencies: r.DependencyLookup(),
	}

	if err := in.Install(ctx, selected); err != nil {
		return err
	}

	if err := lock.Save(cfg); err != nil {
		return err
	}

	log.LogDepfln("installed %d packages", len(selected))
	return nil
}
