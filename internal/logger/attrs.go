// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bep/asynctiff"
)

// ErrorKind returns a short name for the class of a TIFF error,
// e.g. "not_found" or "decode".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case asynctiff.IsNotFound(err):
		return "not_found"
	case asynctiff.IsTileIndexOutOfRange(err):
		return "tile_index"
	case asynctiff.IsUnsupportedCompression(err):
		return "unsupported_compression"
	case asynctiff.IsFormatError(err):
		return "format"
	case asynctiff.IsDecodeError(err):
		return "decode"
	case asynctiff.IsIOError(err):
		return "io"
	default:
		return "other"
	}
}

// Err returns an "error" group attribute with the message and ErrorKind of err.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.String("kind", ErrorKind(err)),
	)
}

// replaceAttr renders the asynctiff values we log in a compact, stable form
// for all handlers.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.String(a.Key, a.Value.Duration().Round(time.Microsecond).String())
	}
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	switch v := a.Value.Any().(type) {
	case asynctiff.ByteRange:
		return slog.String(a.Key, v.String())
	case []asynctiff.ByteRange:
		parts := make([]string, len(v))
		for i, r := range v {
			parts[i] = r.String()
		}
		return slog.String(a.Key, strings.Join(parts, ","))
	case [3]int:
		return slog.String(a.Key, fmt.Sprintf("%d,%d,%d", v[0], v[1], v[2]))
	case asynctiff.Compression:
		return slog.String(a.Key, v.String())
	case asynctiff.DataType:
		return slog.String(a.Key, v.String())
	case error:
		return slog.String(a.Key, v.Error())
	}
	return a
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
}
