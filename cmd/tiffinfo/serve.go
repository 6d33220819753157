// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bep/asynctiff/internal/logger"
	"github.com/bep/asynctiff/internal/server"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"
)

func serveCmd(s *settings) *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve IFD metadata and decoded tiles over HTTP",
		ArgsUsage: "<path or URL>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			if s.serverAddress != "" && !cmd.IsSet("addr") {
				addr = s.serverAddress
			}

			uri, err := requireArg(cmd)
			if err != nil {
				return err
			}
			tf, err := s.open(ctx, uri)
			if err != nil {
				return err
			}
			defer tf.Close()

			e := echo.New()
			e.Use(middleware.Recover())
			server.New(tf.TIFF, log).Register(e)

			log.Info("starting server", "address", addr, "ifds", len(tf.IFDs()))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
