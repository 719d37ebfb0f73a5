package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// CompressionConfig tunes brotli response compression. Attempt and review
// payloads embed whole question sets, so they usually clear MinBytes.
type CompressionConfig struct {
	Level        int
	MinBytes     int
	SkipPrefixes []string
}

// DefaultCompressionConfig leaves the live session stream and the metrics
// feed uncompressed.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:        brotli.DefaultCompression,
		MinBytes:     1024,
		SkipPrefixes: []string{"/ws/", "/api/v1/system/metrics"},
	}
}

// Compress brotli-encodes responses for clients that accept it. Bodies below
// MinBytes go out untouched.
func Compress(cfg CompressionConfig) gin.HandlerFunc {
	if cfg.Level < brotli.BestSpeed || cfg.Level > brotli.BestCompression {
		cfg.Level = brotli.DefaultCompression
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = DefaultCompressionConfig().MinBytes
	}

	return func(c *gin.Context) {
		if cfg.bypass(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		cw := &compressWriter{ResponseWriter: c.Writer, level: cfg.Level, minBytes: cfg.MinBytes}
		c.Writer = cw
		c.Next()

		if err := cw.finish(); err != nil {
			_ = c.Error(err)
		}
		c.Writer = cw.ResponseWriter
	}
}

// bypass reports requests that must reach the client unbuffered: configured
// prefixes, SSE, WebSocket upgrades, and clients without br support.
func (cfg CompressionConfig) bypass(r *http.Request) bool {
	for _, p := range cfg.SkipPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return true
	}
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "br") {
			return false
		}
	}
	return true
}

// compressWriter holds output until minBytes is reached, then switches to
// brotli for the rest of the response. A flush before that point commits the
// response to plain output.
type compressWriter struct {
	gin.ResponseWriter
	level    int
	minBytes int
	pending  []byte
	br       *brotli.Writer
	plain    bool
}

func (w *compressWriter) Write(p []byte) (int, error) {
	switch {
	case w.plain:
		return w.ResponseWriter.Write(p)
	case w.br != nil:
		return w.br.Write(p)
	}

	w.pending = append(w.pending, p...)
	if len(w.pending) < w.minBytes {
		return len(p), nil
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.br = brotli.NewWriterLevel(w.ResponseWriter, w.level)
	if _, err := w.br.Write(w.pending); err != nil {
		return 0, err
	}
	w.pending = nil
	return len(p), nil
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *compressWriter) Flush() {
	if w.br != nil {
		_ = w.br.Flush()
	} else {
		_ = w.drain()
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) finish() error {
	if w.br != nil {
		return w.br.Close()
	}
	return w.drain()
}

func (w *compressWriter) drain() error {
	w.plain = true
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	w.pending = nil
	return err
}
