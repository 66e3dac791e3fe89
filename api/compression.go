package api

import (
	"compress/gzip"
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/fulldump/box"
)

// Compression gzips responses for clients accepting it. Images and the
// metrics endpoint, which negotiates its own encoding, are left alone.
func Compression(next box.H) box.H {
	return func(ctx context.Context) {
		r := box.GetRequest(ctx)
		w := box.GetResponse(ctx)

		if !acceptsGzip(r) {
			next(ctx)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		box.GetBoxContext(ctx).Response = gzipResponseWriter{Writer: gz, ResponseWriter: w}
		next(ctx)
	}
}

func acceptsGzip(r *http.Request) bool {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		return false
	}
	if strings.HasPrefix(r.URL.Path, "/metrics") {
		return false
	}
	mimeType := mime.TypeByExtension(filepath.Ext(r.URL.Path))
	return !strings.HasPrefix(mimeType, "image/")
}

type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}
