// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command tiffinfo prints the IFDs of TIFF files, decodes single tiles and
// serves tiles over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	s := &settings{}
	return &cli.Command{
		Name:  "tiffinfo",
		Usage: "Inspect and decode TIFF, BigTIFF and COG files from disk or HTTP",
		Flags: s.flags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return s.init(ctx, cmd)
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			infoCmd(s),
			tileCmd(s),
			serveCmd(s),
		},
	}
}
