// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bep/asynctiff/internal/logger"
	"github.com/bep/asynctiff/internal/server"
	"github.com/bep/asynctiff/internal/testtiff"
	"github.com/bep/asynctiff/store"
	qt "github.com/frankban/quicktest"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

func writeTestTIFF(c *qt.C) string {
	c.Helper()
	const w, h = 30, 20
	pix := testtiff.Gradient(w, h, 1)
	b := testtiff.Encode(testtiff.Options{BigTIFF: true}, testtiff.Image{
		Width: w, Height: h, TileWidth: 16, TileHeight: 16,
		Chunks:   testtiff.Tiles(pix, w, h, 16, 16, 1),
		Software: "tiffinfo test",
	})
	filename := filepath.Join(c.TempDir(), "test.tif")
	c.Assert(os.WriteFile(filename, b, 0o644), qt.IsNil)
	return filename
}

func run(c *qt.C, args ...string) (string, string, error) {
	c.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(context.Background(), append([]string{"tiffinfo", "--config", ""}, args...))
	return stdout.String(), stderr.String(), err
}

func TestInfo(t *testing.T) {
	c := qt.New(t)
	filename := writeTestTIFF(c)

	c.Run("JSON", func(c *qt.C) {
		out, _, err := run(c, "info", filename)
		c.Assert(err, qt.IsNil)
		var summaries []server.IFDSummary
		c.Assert(json.Unmarshal([]byte(out), &summaries), qt.IsNil)
		c.Assert(summaries, qt.HasLen, 1)
		c.Assert(summaries[0].Width, qt.Equals, uint32(30))
		c.Assert(summaries[0].ChunksAcross, qt.Equals, 2)
		c.Assert(summaries[0].Software, qt.Equals, "tiffinfo test")
	})

	c.Run("YAML single IFD", func(c *qt.C) {
		out, _, err := run(c, "info", "--format", "yaml", "--ifd", "0", filename)
		c.Assert(err, qt.IsNil)
		var summary server.IFDSummary
		c.Assert(yaml.Unmarshal([]byte(out), &summary), qt.IsNil)
		c.Assert(summary.Height, qt.Equals, uint32(20))
		c.Assert(summary.DataType, qt.Equals, "uint8")
	})

	c.Run("Errors", func(c *qt.C) {
		_, _, err := run(c, "info", filepath.Join(c.TempDir(), "missing.tif"))
		c.Assert(err, qt.ErrorMatches, ".*not found")

		_, _, err = run(c, "info", "--format", "xml", filename)
		c.Assert(err, qt.ErrorMatches, `unknown format "xml"`)

		_, _, err = run(c, "info")
		c.Assert(err, qt.ErrorMatches, "info: expected one argument, got 0")

		_, _, err = run(c, "info", "--ifd", "3", filename)
		c.Assert(err, qt.ErrorMatches, ".*IFD index 3.*")
	})
}

func TestTile(t *testing.T) {
	c := qt.New(t)
	filename := writeTestTIFF(c)
	out := filepath.Join(c.TempDir(), "tile.bin")

	stdout, _, err := run(c, "--cache-blocks", "4", "tile", "--row", "1", "--col", "1", "--out", out, filename)
	c.Assert(err, qt.IsNil)
	c.Assert(stdout, qt.Equals, "ifd=0 row=1 col=1 compression=None shape=4,14,1 dtype=uint8 bytes=56\n")

	b, err := os.ReadFile(out)
	c.Assert(err, qt.IsNil)
	c.Assert(b, qt.HasLen, 56)

	_, _, err = run(c, "tile", "--row", "2", filename)
	c.Assert(err, qt.ErrorMatches, ".*out of range.*")
}

func TestConfig(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	filename := filepath.Join(dir, "config.yaml")
	c.Assert(os.WriteFile(filename, []byte(`
prefetch_size: 1024
workers: 2
timeout: 5s
log_level: debug
log_format: json
server_address: 127.0.0.1:9999
`), 0o644), qt.IsNil)

	cfg, err := loadConfig(filename)
	c.Assert(err, qt.IsNil)
	c.Assert(*cfg.PrefetchSize, qt.Equals, uint64(1024))
	c.Assert(*cfg.Workers, qt.Equals, 2)
	c.Assert(cfg.ReadaheadSize, qt.IsNil)

	cfg, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, Config{})

	c.Assert(os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("workers: [1"), 0o644), qt.IsNil)
	_, err = loadConfig(filepath.Join(dir, "bad.yaml"))
	c.Assert(err, qt.ErrorMatches, "parse config .*")

	c.Run("Flags win over config", func(c *qt.C) {
		tiff := writeTestTIFF(c)
		var stdout, stderr bytes.Buffer
		app := newApp()
		app.Writer = &stdout
		app.ErrWriter = &stderr
		err := app.Run(context.Background(), []string{"tiffinfo", "--config", filename, "--workers", "3", "tile", tiff})
		c.Assert(err, qt.IsNil)
		// The config selects debug level JSON logs.
		c.Assert(stderr.String(), qt.Contains, `"msg":"decoded tile"`)
	})
}

func TestOpenClosesSource(t *testing.T) {
	c := qt.New(t)
	filename := writeTestTIFF(c)

	for _, cacheBlocks := range []int{0, 4} {
		s := &settings{cacheBlocks: cacheBlocks, log: logger.Discard()}
		tf, err := s.open(context.Background(), filename)
		c.Assert(err, qt.IsNil)
		f, ok := tf.src.(*store.File)
		c.Assert(ok, qt.IsTrue)
		c.Assert(f.NumMapped(), qt.Equals, 1)
		c.Assert(tf.Close(), qt.IsNil)
		c.Assert(f.NumMapped(), qt.Equals, 0)
	}
}

func TestApplyConfig(t *testing.T) {
	c := qt.New(t)
	s := &settings{prefetchSize: 7, workers: 1}
	app := newApp()
	prefetch, workers, bad := uint64(100), 4, "soon"
	addr := "0.0.0.0:1"

	// Nothing is set on a command that has not been run.
	c.Assert(s.applyConfig(app, Config{PrefetchSize: &prefetch, Workers: &workers, ServerAddress: &addr}), qt.IsNil)
	c.Assert(s.prefetchSize, qt.Equals, uint64(100))
	c.Assert(s.workers, qt.Equals, 4)
	c.Assert(s.serverAddress, qt.Equals, addr)

	c.Assert(s.applyConfig(app, Config{Timeout: &bad}), qt.ErrorMatches, "config timeout: .*")
}
