// Package middleware holds HTTP middleware that is not tied to any one
// domain package.
package middleware

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Gzip compresses responses for clients that accept it. Responses are
// buffered so small payloads skip compression entirely.
type Gzip struct {
	minSize int
	level   int
	pool    sync.Pool

	totalResponses      int64
	compressedResponses int64
	bytesIn             int64
	bytesOut            int64
}

// NewGzip returns a gzip middleware. minSize is the smallest body, in
// bytes, worth compressing; level is the gzip compression level.
func NewGzip(minSize, level int) *Gzip {
	if minSize <= 0 {
		minSize = 1024
	}
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	g := &Gzip{minSize: minSize, level: level}
	g.pool = sync.Pool{
		New: func() interface{} {
			w, _ := gzip.NewWriterLevel(nil, level)
			return w
		},
	}
	return g
}

// Handler returns the Gin middleware.
func (g *Gzip) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		bw := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()
		c.Writer = bw.ResponseWriter

		g.flush(bw)
	}
}

func (g *Gzip) flush(bw *bufferedWriter) {
	rw := bw.ResponseWriter
	status := bw.status
	if status == 0 {
		status = http.StatusOK
	}
	body := bw.buf.Bytes()

	atomic.AddInt64(&g.totalResponses, 1)
	atomic.AddInt64(&g.bytesIn, int64(len(body)))

	if len(body) < g.minSize || !compressible(rw.Header().Get("Content-Type")) {
		rw.WriteHeader(status)
		if len(body) > 0 {
			rw.Write(body) //nolint:errcheck
		}
		atomic.AddInt64(&g.bytesOut, int64(len(body)))
		return
	}

	header := rw.Header()
	header.Set("Content-Encoding", "gzip")
	header.Set("Vary", "Accept-Encoding")
	header.Del("Content-Length")
	rw.WriteHeader(status)

	gz := g.pool.Get().(*gzip.Writer)
	cw := &countingWriter{w: rw}
	gz.Reset(cw)
	gz.Write(body) //nolint:errcheck
	gz.Close()
	g.pool.Put(gz)

	atomic.AddInt64(&g.compressedResponses, 1)
	atomic.AddInt64(&g.bytesOut, cw.n)
}

// Stats reports compression counters for the stats endpoints.
func (g *Gzip) Stats() map[string]interface{} {
	total := atomic.LoadInt64(&g.totalResponses)
	compressed := atomic.LoadInt64(&g.compressedResponses)
	in := atomic.LoadInt64(&g.bytesIn)
	out := atomic.LoadInt64(&g.bytesOut)

	ratio := float64(0)
	if in > 0 {
		ratio = float64(out) / float64(in)
	}

	return map[string]interface{}{
		"total_responses":      total,
		"compressed_responses": compressed,
		"bytes_in":             in,
		"bytes_out":            out,
		"output_ratio":         ratio,
	}
}

func compressible(contentType string) bool {
	switch {
	case strings.Contains(contentType, "application/json"),
		strings.Contains(contentType, "text/"),
		strings.Contains(contentType, "application/javascript"),
		strings.Contains(contentType, "application/xml"):
		return true
	}
	return false
}

// bufferedWriter captures the response body and defers the header write
// so the encoding decision can be made after the handler runs.
type bufferedWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.status = code
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Written() bool {
	return w.status != 0 || w.buf.Len() > 0
}

func (w *bufferedWriter) Size() int {
	return w.buf.Len()
}

func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

type countingWriter struct {
	w gin.ResponseWriter
	n int64
}

func (cw *countingWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	return n, err
}
