// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package server serves the metadata and decoded tiles of an opened TIFF over HTTP.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bep/asynctiff"
	"github.com/bep/asynctiff/internal/logger"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderShape     = "X-Tile-Shape"
	HeaderDataType  = "X-Tile-Dtype"
)

// Server is the HTTP API for one TIFF.
type Server struct {
	tiff   *asynctiff.TIFF
	logger logger.Logger
}

// New returns a Server for t.
func New(t *asynctiff.TIFF, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{tiff: t, logger: log}
}

// Register adds the routes and middleware to e.
func (s *Server) Register(e *echo.Echo) {
	e.Use(requestID)
	e.GET("/ifds", s.handleIFDs)
	e.GET("/ifds/:ifd", s.handleIFD)
	e.GET("/tiles/:ifd/:row/:col", s.handleTile)
}

func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := c.Request().Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(HeaderRequestID, id)
		return next(c)
	}
}

func (s *Server) handleIFDs(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, SummarizeAll(s.tiff))
}

func (s *Server) handleIFD(c *echo.Context) error {
	i, err := intParam(c, "ifd")
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	ifd, err := s.tiff.IFD(i)
	if err != nil {
		return writeError(c, http.StatusNotFound, err)
	}
	return writeJSON(c, http.StatusOK, Summarize(i, ifd))
}

// handleTile writes the decoded tile as raw little endian samples.
// The shape and data type are sent in headers.
func (s *Server) handleTile(c *echo.Context) error {
	var coords [3]int
	for i, name := range []string{"ifd", "row", "col"} {
		v, err := intParam(c, name)
		if err != nil {
			return writeError(c, http.StatusBadRequest, err)
		}
		coords[i] = v
	}
	ifdIndex, row, col := coords[0], coords[1], coords[2]

	log := s.logger.With("request_id", c.Response().Header().Get(HeaderRequestID), "ifd", ifdIndex, "row", row, "col", col)

	tile, err := s.tiff.FetchTile(col, row, ifdIndex)
	if err != nil {
		return writeError(c, statusFor(err), err)
	}

	arr, err := tile.Decode(c.Request().Context())
	if err != nil {
		log.Warn("decode tile failed", logger.Err(err))
		return writeError(c, statusFor(err), err)
	}
	log.Debug("decoded tile", "shape", arr.Shape(), "dtype", arr.DataType())

	shape := arr.Shape()
	h := c.Response().Header()
	h.Set(HeaderShape, fmt.Sprintf("%d,%d,%d", shape[0], shape[1], shape[2]))
	h.Set(HeaderDataType, arr.DataType().String())

	return c.Blob(http.StatusOK, echo.MIMEOctetStream, arr.Bytes())
}

func intParam(c *echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, c.Param(name))
	}
	return v, nil
}

func statusFor(err error) int {
	switch {
	case asynctiff.IsTileIndexOutOfRange(err), asynctiff.IsNotFound(err):
		return http.StatusNotFound
	case asynctiff.IsUnsupportedCompression(err):
		return http.StatusNotImplemented
	case asynctiff.IsIOError(err):
		return http.StatusBadGateway
	case errors.Is(err, asynctiff.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(c *echo.Context, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, b)
}

func writeError(c *echo.Context, status int, err error) error {
	return writeJSON(c, status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": err.Error(),
		},
	})
}
