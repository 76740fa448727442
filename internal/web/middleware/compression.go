package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// Level is the gzip compression level (1-9)
	Level int
	// MinSize is the minimum size of the first write to compress (in bytes)
	MinSize int
	// ContentTypes lists the compressible content type prefixes
	ContentTypes []string
}

// DefaultCompressionConfig compresses JSON and text responses of 1KB and up
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:        gzip.DefaultCompression,
		MinSize:      1024,
		ContentTypes: []string{"application/json", "text/"},
	}
}

// Compression creates a compression middleware with default configuration
func Compression() Middleware {
	return CompressionWithConfig(DefaultCompressionConfig())
}

// CompressionWithConfig creates a gzip middleware. Websocket handshakes
// must be excluded by the caller since gzip writers cannot be hijacked.
func CompressionWithConfig(config CompressionConfig) Middleware {
	pool := &sync.Pool{
		New: func() interface{} {
			writer, _ := gzip.NewWriterLevel(io.Discard, config.Level)
			return writer
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			gzw := &gzipResponseWriter{ResponseWriter: w, pool: pool, config: config, status: http.StatusOK}
			defer gzw.Close()

			next.ServeHTTP(gzw, r)
		})
	}
}

// gzipResponseWriter defers the compress decision to the first write,
// when the content type and size are known.
type gzipResponseWriter struct {
	http.ResponseWriter
	pool    *sync.Pool
	config  CompressionConfig
	gz      *gzip.Writer
	status  int
	decided bool
	pending bool
}

// WriteHeader records the status; it is sent with the first write
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.decided || g.pending {
		return
	}
	g.status = statusCode
	g.pending = true
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.decided {
		g.decide(b)
	}
	if g.gz != nil {
		return g.gz.Write(b)
	}
	return g.ResponseWriter.Write(b)
}

func (g *gzipResponseWriter) decide(first []byte) {
	g.decided = true
	h := g.ResponseWriter.Header()

	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", http.DetectContentType(first))
	}

	if g.compressible(h, len(first)) {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		g.gz = g.pool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
	}
	g.ResponseWriter.WriteHeader(g.status)
}

func (g *gzipResponseWriter) compressible(h http.Header, size int) bool {
	if size < g.config.MinSize || h.Get("Content-Encoding") != "" {
		return false
	}
	if g.status < 200 || g.status == http.StatusNoContent || g.status == http.StatusNotModified {
		return false
	}
	contentType := h.Get("Content-Type")
	for _, prefix := range g.config.ContentTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// Close flushes pending headers and the gzip stream
func (g *gzipResponseWriter) Close() error {
	if !g.decided {
		g.decided = true
		if g.pending {
			g.ResponseWriter.WriteHeader(g.status)
		}
		return nil
	}
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	g.pool.Put(g.gz)
	g.gz = nil
	return err
}

// Flush flushes buffered compressed data to the client
func (g *gzipResponseWriter) Flush() {
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
