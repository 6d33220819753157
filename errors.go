// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound is returned (wrapped) by a RangeSource when the resource does not exist.
	ErrNotFound = errors.New("asynctiff: not found")

	// ErrTileIndexOutOfRange is matched by errors for tile or strip requests
	// outside of the image.
	ErrTileIndexOutOfRange = errors.New("asynctiff: tile index out of range")

	// Internal error to signal that a cursor read ran past its buffer.
	errShortRead = errors.New("short read")
)

// NotFoundError is returned when the resource does not exist at the RangeSource.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("asynctiff: %s: not found", e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) work for all not found errors.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IOError is a fetch failure reported by the RangeSource.
type IOError struct {
	Path  string
	Range ByteRange
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("asynctiff: fetching %s %s: %v", e.Path, e.Range, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FormatError is returned for malformed headers, directories and GeoKey blobs.
type FormatError struct {
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asynctiff: invalid format: %s: %v", e.Msg, e.Err)
	}
	return "asynctiff: invalid format: " + e.Msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func newFormatErrorf(format string, args ...any) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedCompressionError is returned when no decoder is registered for a compression.
type UnsupportedCompressionError struct {
	Compression Compression
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("asynctiff: unsupported compression %d (%s)", uint16(e.Compression), e.Compression)
}

// DecodeError is returned when a registered decoder failed or produced output
// of the wrong length.
type DecodeError struct {
	Compression Compression
	Msg         string
	Err         error
}

func (e *DecodeError) Error() string {
	s := "asynctiff: decode"
	if e.Compression != 0 {
		s += " " + e.Compression.String()
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TileIndexError is returned when a tile or strip outside of the image is requested.
type TileIndexError struct {
	Col, Row, Plane int
	Index           int
	Count           int
}

func (e *TileIndexError) Error() string {
	return fmt.Sprintf("asynctiff: tile (col=%d, row=%d, plane=%d) index %d out of range [0, %d)", e.Col, e.Row, e.Plane, e.Index, e.Count)
}

// Is makes errors.Is(err, ErrTileIndexOutOfRange) work.
func (e *TileIndexError) Is(target error) bool {
	return target == ErrTileIndexOutOfRange
}

// IsNotFound reports whether err is or wraps a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIOError reports whether err is or wraps an *IOError.
func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

// IsFormatError reports whether err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var e *FormatError
	return errors.As(err, &e)
}

// IsUnsupportedCompression reports whether err is or wraps an *UnsupportedCompressionError.
func IsUnsupportedCompression(err error) bool {
	var e *UnsupportedCompressionError
	return errors.As(err, &e)
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// IsTileIndexOutOfRange reports whether err is a tile index error.
func IsTileIndexOutOfRange(err error) bool {
	return errors.Is(err, ErrTileIndexOutOfRange)
}

// classifyFetchError maps an error from a RangeSource to NotFound or IOError.
func classifyFetchError(path string, r ByteRange, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf *NotFoundError
		ie *IOError
	)
	if errors.As(err, &nf) || errors.As(err, &ie) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &NotFoundError{Path: path, Err: err}
	}
	return &IOError{Path: path, Range: r, Err: err}
}

// isFormatErrorCandidate reports whether err, recovered from a parser panic,
// should be reported as a FormatError.
func isFormatErrorCandidate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errShortRead) {
		return true
	}
	var re interface{ RuntimeError() }
	return errors.As(err, &re)
}
