package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes the compression middleware. Responses shorter than
// MinLength are sent uncompressed: the encoding overhead outweighs the
// saving on small JSON envelopes.
type BrotliConfig struct {
	Quality   int
	MinLength int
	Skipper   func(c *gin.Context) bool
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// compressWriter buffers the response until MinLength is reached, then
// switches to the brotli stream for everything written so far and after.
// A response that never reaches the threshold goes out as plain bytes.
type compressWriter struct {
	gin.ResponseWriter
	br         *brotli.Writer
	pending    []byte
	minLength  int
	compressed bool
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if w.compressed {
		return w.br.Write(p)
	}
	w.pending = append(w.pending, p...)
	if len(w.pending) < w.minLength {
		return len(p), nil
	}

	w.compressed = true
	w.ResponseWriter.Header().Set("Content-Encoding", "br")
	w.ResponseWriter.Header().Del("Content-Length")
	n, err := w.br.Write(w.pending)
	w.pending = nil
	return n, err
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush is called by streaming endpoints. Below the threshold the buffer
// drains as plain text so the bytes actually leave the server.
func (w *compressWriter) Flush() {
	if !w.compressed && len(w.pending) > 0 {
		_, _ = w.ResponseWriter.Write(w.pending)
		w.pending = nil
	}
	w.ResponseWriter.Flush()
}

// finish terminates the response: closing the brotli stream when one was
// started, or writing the never-compressed buffer through as-is.
func (w *compressWriter) finish() error {
	if w.compressed {
		return w.br.Close()
	}
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	w.pending = nil
	return err
}

// Brotli compresses responses with the default configuration.
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if skipCompression(c) || (cfg.Skipper != nil && cfg.Skipper(c)) {
			c.Next()
			return
		}
		if !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		cw := &compressWriter{
			ResponseWriter: c.Writer,
			br:             brotli.NewWriterLevel(c.Writer, cfg.Quality),
			minLength:      cfg.MinLength,
		}
		c.Writer = cw
		defer func() {
			if err := cw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// skipCompression returns true for protocols that buffered compression
// would break and that must pass through untouched.
func skipCompression(c *gin.Context) bool {
	// SSE needs every event on the wire immediately.
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	// The WebSocket handshake fails on a wrapped response.
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}
