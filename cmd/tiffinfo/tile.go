// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bep/asynctiff/internal/logger"
	"github.com/urfave/cli/v3"
)

func tileCmd(s *settings) *cli.Command {
	var (
		ifd, row, col int
		out           string
	)

	return &cli.Command{
		Name:      "tile",
		Usage:     "Decode one tile or strip and print its shape and data type",
		ArgsUsage: "<path or URL>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ifd", Usage: "IFD index", Destination: &ifd},
			&cli.IntFlag{Name: "row", Usage: "tile row, or strip number", Destination: &row},
			&cli.IntFlag{Name: "col", Usage: "tile column", Destination: &col},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "write the decoded little endian samples to this file",
				Destination: &out,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			uri, err := requireArg(cmd)
			if err != nil {
				return err
			}
			tf, err := s.open(ctx, uri)
			if err != nil {
				return err
			}
			defer tf.Close()

			tile, err := tf.FetchTile(col, row, ifd)
			if err != nil {
				return err
			}

			start := time.Now()
			arr, err := tile.Decode(ctx)
			if err != nil {
				return err
			}
			log.Debug("decoded tile", "ifd", ifd, "row", row, "col", col, "ranges", len(tile.Ranges()), "duration", time.Since(start))

			shape := arr.Shape()
			fmt.Fprintf(cmd.Root().Writer, "ifd=%d row=%d col=%d compression=%s shape=%d,%d,%d dtype=%s bytes=%d\n",
				ifd, row, col, tile.Compression, shape[0], shape[1], shape[2], arr.DataType(), len(arr.Bytes()))

			if out != "" {
				if err := os.WriteFile(out, arr.Bytes(), 0o644); err != nil {
					return err
				}
				log.Info("wrote tile", "file", out)
			}
			return nil
		},
	}
}
