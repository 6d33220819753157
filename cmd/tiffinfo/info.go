// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/bep/asynctiff/internal/server"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func infoCmd(s *settings) *cli.Command {
	var (
		format string
		ifd    int
	)

	return &cli.Command{
		Name:      "info",
		Usage:     "Print the IFDs of a TIFF file",
		ArgsUsage: "<path or URL>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "json or yaml",
				Value:       "json",
				Destination: &format,
			},
			&cli.IntFlag{
				Name:        "ifd",
				Usage:       "only print the IFD with this index, -1 prints all",
				Value:       -1,
				Destination: &ifd,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			uri, err := requireArg(cmd)
			if err != nil {
				return err
			}
			tf, err := s.open(ctx, uri)
			if err != nil {
				return err
			}
			defer tf.Close()

			var v any = server.SummarizeAll(tf.TIFF)
			if ifd >= 0 {
				d, err := tf.IFD(ifd)
				if err != nil {
					return err
				}
				v = server.Summarize(ifd, d)
			}

			var b []byte
			switch format {
			case "json":
				b, err = json.MarshalIndent(v, "", "  ")
				b = append(b, '\n')
			case "yaml":
				b, err = yaml.Marshal(v)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.Root().Writer.Write(b)
			return err
		},
	}
}

func requireArg(cmd *cli.Command) (string, error) {
	if cmd.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one argument, got %d", cmd.Name, cmd.NArg())
	}
	return cmd.Args().First(), nil
}
