// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/asynctiff"
	"github.com/bep/asynctiff/internal/logger"
	"github.com/bep/asynctiff/store"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the tiffinfo configuration file (~/.config/tiffinfo/config.yaml).
// All fields are pointers so we can distinguish "not set" from zero values.
type Config struct {
	PrefetchSize  *uint64 `yaml:"prefetch_size"`
	ReadaheadSize *uint64 `yaml:"readahead_size"`
	Workers       *int    `yaml:"workers"`
	CacheBlocks   *int    `yaml:"cache_blocks"`
	Timeout       *string `yaml:"timeout"`

	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`

	ServerAddress *string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tiffinfo", "config.yaml")
}

// loadConfig reads the config file at path.
// A missing file gives a zero Config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// settings holds the global flags shared by all commands.
type settings struct {
	configFile    string
	prefetchSize  uint64
	readaheadSize uint64
	workers       int
	cacheBlocks   int
	timeout       time.Duration
	logLevel      string
	logFormat     string
	serverAddress string

	log logger.Logger
}

func (s *settings) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file",
			Value:       configPath(),
			Destination: &s.configFile,
		},
		&cli.Uint64Flag{
			Name:        "prefetch",
			Usage:       "bytes to prefetch from the start of the file",
			Value:       32 << 10,
			Destination: &s.prefetchSize,
		},
		&cli.Uint64Flag{
			Name:        "readahead",
			Usage:       "initial size of the metadata readahead cache, 0 disables it",
			Destination: &s.readaheadSize,
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "decompression workers, 0 means GOMAXPROCS",
			Destination: &s.workers,
		},
		&cli.IntFlag{
			Name:        "cache-blocks",
			Usage:       "number of 64 KiB blocks to cache, 0 disables the cache",
			Destination: &s.cacheBlocks,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "timeout for reading metadata",
			Value:       time.Minute,
			Destination: &s.timeout,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warn or error",
			Value:       "info",
			Destination: &s.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "pretty, text or json",
			Value:       "pretty",
			Destination: &s.logFormat,
		},
	}
}

// init applies the config file to flags that were not set and sets up logging.
func (s *settings) init(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfig(s.configFile)
	if err != nil {
		return ctx, err
	}
	if err := s.applyConfig(cmd, cfg); err != nil {
		return ctx, err
	}

	s.log, err = logger.ForFormat(s.logFormat, cmd.Root().ErrWriter, logger.ParseLevel(s.logLevel))
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, s.log), nil
}

// applyConfig applies config file values to flags that were not set explicitly.
func (s *settings) applyConfig(cmd *cli.Command, cfg Config) error {
	if cfg.PrefetchSize != nil && !cmd.IsSet("prefetch") {
		s.prefetchSize = *cfg.PrefetchSize
	}
	if cfg.ReadaheadSize != nil && !cmd.IsSet("readahead") {
		s.readaheadSize = *cfg.ReadaheadSize
	}
	if cfg.Workers != nil && !cmd.IsSet("workers") {
		s.workers = *cfg.Workers
	}
	if cfg.CacheBlocks != nil && !cmd.IsSet("cache-blocks") {
		s.cacheBlocks = *cfg.CacheBlocks
	}
	if cfg.Timeout != nil && !cmd.IsSet("timeout") {
		d, err := time.ParseDuration(*cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		s.timeout = d
	}
	if cfg.LogLevel != nil && !cmd.IsSet("log-level") {
		s.logLevel = *cfg.LogLevel
	}
	if cfg.LogFormat != nil && !cmd.IsSet("log-format") {
		s.logFormat = *cfg.LogFormat
	}
	if cfg.ServerAddress != nil {
		s.serverAddress = *cfg.ServerAddress
	}
	return nil
}

// open opens the TIFF at uri, a local path or an http(s) URL.
// openedTIFF is a TIFF together with the source it was read from.
type openedTIFF struct {
	*asynctiff.TIFF
	src asynctiff.RangeSource
}

// Close stops the TIFF's workers and closes the source if it holds resources,
// e.g. the mapped files of a store.File.
func (o *openedTIFF) Close() error {
	err := o.TIFF.Close()
	if c, ok := o.src.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (s *settings) open(ctx context.Context, uri string) (*openedTIFF, error) {
	src, path, err := store.Open(uri)
	if err != nil {
		return nil, err
	}
	closeSrc := func() {
		if c, ok := src.(io.Closer); ok {
			c.Close()
		}
	}

	rs := src
	if s.cacheBlocks > 0 {
		if rs, err = store.NewCache(src, 0, s.cacheBlocks); err != nil {
			closeSrc()
			return nil, err
		}
	}

	log := s.log.With("uri", uri)
	tf, err := asynctiff.Open(ctx, asynctiff.Options{
		Source:        rs,
		Path:          path,
		PrefetchSize:  s.prefetchSize,
		ReadaheadSize: s.readaheadSize,
		Workers:       s.workers,
		Timeout:       s.timeout,
		Logger:        log.Slog(),
		Warnf:         log.Warnf,
	})
	if err != nil {
		closeSrc()
		return nil, err
	}
	return &openedTIFF{TIFF: tf, src: src}, nil
}
