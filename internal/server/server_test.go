// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bep/asynctiff"
	"github.com/bep/asynctiff/internal/logger"
	"github.com/bep/asynctiff/internal/testtiff"
	"github.com/bep/asynctiff/store"
	qt "github.com/frankban/quicktest"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

const width, height, tileSize = 40, 20, 16

func newTestServer(c *qt.C) (*echo.Echo, *bytes.Buffer) {
	c.Helper()
	pix := testtiff.Gradient(width, height, 3)
	b := testtiff.Encode(testtiff.Options{}, testtiff.Image{
		Width:           width,
		Height:          height,
		TileWidth:       tileSize,
		TileHeight:      tileSize,
		SamplesPerPixel: 3,
		Photometric:     2,
		Chunks:          testtiff.Tiles(pix, width, height, tileSize, tileSize, 3),
		PixelScale:      []float64{2, 2, 0},
		Tiepoint:        []float64{0, 0, 0, 100, 200, 0},
		GeoKeys:         testtiff.GeoKeys([4]uint16{3072, 0, 1, 32633}),
		Description:     "server test",
	}, testtiff.Image{
		Width:       8,
		Height:      8,
		Compression: int(asynctiff.CompressionWebP),
		Chunks:      [][]byte{{1}},
	})
	mem := store.NewMemory()
	mem.Put("test.tif", b)
	tf, err := asynctiff.Open(context.Background(), asynctiff.Options{Source: mem, Path: "test.tif"})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { tf.Close() })

	var logs bytes.Buffer
	e := echo.New()
	New(tf, logger.JSON(&logs, slog.LevelDebug)).Register(e)
	return e, &logs
}

func get(e *echo.Echo, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestIFDs(t *testing.T) {
	c := qt.New(t)
	e, _ := newTestServer(c)

	rec := get(e, "/ifds")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Header().Get(HeaderRequestID), qt.Not(qt.Equals), "")

	var summaries []IFDSummary
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &summaries), qt.IsNil)
	c.Assert(summaries, qt.HasLen, 2)

	s := summaries[0]
	c.Assert(s.Width, qt.Equals, uint32(width))
	c.Assert(s.DataType, qt.Equals, "uint8")
	c.Assert(s.Compression, qt.Equals, "None")
	c.Assert(s.Photometric, qt.Equals, "RGB")
	c.Assert(s.ChunksAcross, qt.Equals, 3)
	c.Assert(s.ChunksDown, qt.Equals, 2)
	c.Assert(s.EPSG, qt.Equals, uint16(32633))
	c.Assert(s.Bounds, qt.DeepEquals, []float64{100, 160, 180, 200})
	c.Assert(s.Description, qt.Equals, "server test")
	c.Assert(summaries[1].Compression, qt.Equals, "WebP")
}

func TestIFD(t *testing.T) {
	c := qt.New(t)
	e, _ := newTestServer(c)

	rec := get(e, "/ifds/1", HeaderRequestID, "abc")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Header().Get(HeaderRequestID), qt.Equals, "abc")
	var s IFDSummary
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &s), qt.IsNil)
	c.Assert(s.Index, qt.Equals, 1)
	c.Assert(s.Width, qt.Equals, uint32(8))

	c.Assert(get(e, "/ifds/2").Code, qt.Equals, http.StatusNotFound)
	c.Assert(get(e, "/ifds/x").Code, qt.Equals, http.StatusBadRequest)
}

func TestTile(t *testing.T) {
	c := qt.New(t)
	e, logs := newTestServer(c)

	rec := get(e, "/tiles/0/1/2", HeaderRequestID, "req-1")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Header().Get(HeaderShape), qt.Equals, "4,8,3")
	c.Assert(rec.Header().Get(HeaderDataType), qt.Equals, "uint8")
	c.Assert(rec.Body.Len(), qt.Equals, 4*8*3)
	c.Assert(logs.String(), qt.Contains, `"request_id":"req-1"`)

	for _, test := range []struct {
		target string
		status int
	}{
		{"/tiles/0/5/0", http.StatusNotFound},
		{"/tiles/9/0/0", http.StatusNotFound},
		{"/tiles/0/a/0", http.StatusBadRequest},
		{"/tiles/1/0/0", http.StatusNotImplemented},
	} {
		rec := get(e, test.target)
		c.Assert(rec.Code, qt.Equals, test.status, qt.Commentf("%s", test.target))

		var body struct {
			Error struct {
				Status  int    `json:"status"`
				Message string `json:"message"`
			} `json:"error"`
		}
		c.Assert(json.Unmarshal(rec.Body.Bytes(), &body), qt.IsNil)
		c.Assert(body.Error.Status, qt.Equals, test.status)
		c.Assert(body.Error.Message, qt.Not(qt.Equals), "")
	}
}

func TestSummarizeColormapAndMask(t *testing.T) {
	c := qt.New(t)
	ifd := &asynctiff.IFD{
		ImageWidth:                16,
		ImageHeight:               16,
		SamplesPerPixel:           1,
		BitsPerSample:             []uint16{8},
		SampleFormat:              []asynctiff.SampleFormat{asynctiff.SampleFormatUint},
		PhotometricInterpretation: asynctiff.PhotometricPalette,
		RowsPerStrip:              16,
		StripOffsets:              []uint64{8},
		StripByteCounts:           []uint64{256},
		ColorMap:                  make([]uint16, 768),
		Other:                     map[asynctiff.Tag]any{65001: uint16(1), 65000: uint32(0)},
	}
	s := Summarize(3, ifd)
	c.Assert(s.Index, qt.Equals, 3)
	c.Assert(*s.Colormap, qt.Equals, [2]int{256, 3})
	c.Assert(s.Mask, qt.IsFalse)
	c.Assert(s.Tiled, qt.IsFalse)
	c.Assert(s.Chunks, qt.Equals, 1)
	c.Assert(s.OtherTags, qt.DeepEquals, []string{"UnknownTag_0xfde8", "UnknownTag_0xfde9"})
}
