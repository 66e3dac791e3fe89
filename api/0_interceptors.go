package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fulldump/box"
	"go.uber.org/zap"

	"github.com/fulldump/docstore/api/apicollectionv1"
)

// RecoverFromPanic turns a panic into an error so PrettyErrorInterceptor can
// answer it.
func RecoverFromPanic(next box.H) box.H {
	return func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				debug.PrintStack()
				box.SetError(ctx, fmt.Errorf("panic: %v", r))
			}
		}()
		next(ctx)
	}
}

func AccessLog(l *zap.SugaredLogger) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			r := box.GetRequest(ctx)
			now := time.Now()
			defer func() {
				l.Infow("access",
					"remote", formatRemoteAddr(r),
					"method", r.Method,
					"url", r.URL.String(),
					"took", time.Since(now).String(),
				)
			}()

			next(ctx)
		}
	}
}

func formatRemoteAddr(r *http.Request) string {
	xorigin := strings.TrimSpace(strings.Split(
		r.Header.Get("X-Forwarded-For"), ",")[0])
	if xorigin != "" {
		return xorigin
	}

	i := strings.LastIndex(r.RemoteAddr, ":")
	if i < 0 {
		return r.RemoteAddr
	}
	return r.RemoteAddr[0:i]
}

// Authenticate resolves HTTP basic credentials into the request principal.
func Authenticate(next box.H) box.H {
	return func(ctx context.Context) {

		username, password, ok := box.GetRequest(ctx).BasicAuth()
		if !ok {
			box.GetResponse(ctx).Header().Set("WWW-Authenticate", `Basic realm="docstore"`)
			box.SetError(ctx, ErrUnauthorized)
			return
		}

		user, err := apicollectionv1.GetServicer(ctx).Login(username, password)
		if err != nil {
			box.SetError(ctx, fmt.Errorf("%w: %s", ErrUnauthorized, err.Error()))
			return
		}

		next(apicollectionv1.SetUser(ctx, user))
	}
}
