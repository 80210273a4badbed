package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var errInflatedTooLarge = errors.New("inflated body too large")

// GzipRequestMiddleware lets clients submit gzip-compressed drafts. The body
// handlers read is the inflated JSON, cut off with an error once it passes
// maxInflated bytes; zero means maxDraftSize. A body that is not gzip gets a
// 400 before any handler runs.
func GzipRequestMiddleware(maxInflated int64) echo.MiddlewareFunc {
	if maxInflated <= 0 {
		maxInflated = maxDraftSize
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !gzipEncoded(req.Header) {
				return next(c)
			}
			body, err := inflate(req.Body, maxInflated)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			req.Body = body
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func gzipEncoded(h http.Header) bool {
	for _, value := range h.Values(echo.HeaderContentEncoding) {
		for _, enc := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
				return true
			}
		}
	}
	return false
}

func inflate(raw io.ReadCloser, limit int64) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &inflatedBody{zr: zr, raw: raw, left: limit}, nil
}

// inflatedBody reads at most left inflated bytes and fails past that.
type inflatedBody struct {
	zr   *gzip.Reader
	raw  io.Closer
	left int64
}

func (b *inflatedBody) Read(p []byte) (int, error) {
	if b.left <= 0 {
		var one [1]byte
		if n, _ := b.zr.Read(one[:]); n > 0 {
			return 0, errInflatedTooLarge
		}
		return 0, io.EOF
	}
	if int64(len(p)) > b.left {
		p = p[:b.left]
	}
	n, err := b.zr.Read(p)
	b.left -= int64(n)
	return n, err
}

func (b *inflatedBody) Close() error {
	return errors.Join(b.zr.Close(), b.raw.Close())
}
