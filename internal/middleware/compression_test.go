package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGzipRouter(minSize int) (*Gzip, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	g := NewGzip(minSize, gzip.DefaultCompression)

	r := gin.New()
	r.Use(g.Handler())
	r.GET("/large", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": strings.Repeat("nirman ", 500)})
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return g, r
}

func TestGzipCompressesLargeJSON(t *testing.T) {
	_, r := newGzipRouter(64)

	req, _ := http.NewRequest("GET", "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "nirman")
}

func TestGzipSkipsSmallResponses(t *testing.T) {
	_, r := newGzipRouter(1024)

	req, _ := http.NewRequest("GET", "/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestGzipSkipsClientsWithoutSupport(t *testing.T) {
	_, r := newGzipRouter(64)

	req, _ := http.NewRequest("GET", "/large", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Body.String(), "nirman")
}

func TestGzipStats(t *testing.T) {
	g, r := newGzipRouter(64)

	for _, path := range []string{"/large", "/small"} {
		req, _ := http.NewRequest("GET", path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}

	stats := g.Stats()
	assert.EqualValues(t, 2, stats["total_responses"])
	assert.EqualValues(t, 1, stats["compressed_responses"])
}
