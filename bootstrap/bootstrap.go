package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fulldump/box"

	"github.com/fulldump/docstore/api"
	"github.com/fulldump/docstore/auth"
	"github.com/fulldump/docstore/configuration"
	"github.com/fulldump/docstore/database"
	"github.com/fulldump/docstore/logger"
	"github.com/fulldump/docstore/service"
)

var VERSION = "dev"

func Bootstrap(c *configuration.Configuration) (start, stop func()) {

	l := logger.New(c.LogLevel, c.LogFormat, os.Stdout)

	store, err := database.NewStore(&database.Config{
		StorageMode:  c.StorageMode,
		StoragePath:  c.StoragePath,
		IdleTimeout:  time.Duration(c.IdleTimeoutMs) * time.Millisecond,
		DumpInterval: time.Duration(c.DumpIntervalMs) * time.Millisecond,
		Hasher:       auth.NewBcryptHasher(c.BcryptCost),
		Logger:       l,
	})
	if err != nil {
		l.Fatalw("configure store", "error", err)
	}

	b := api.Build(service.NewService(store), VERSION)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(l.With("component", "access")),
		api.PrettyErrorInterceptor,
		api.InterceptorUnavailable(store),
		api.RecoverFromPanic,
	)

	s := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		l.Fatalw("listen", "addr", c.HttpAddr, "error", err)
	}
	l.Infow("listening", "addr", c.HttpAddr)

	stopOnce := sync.Once{}
	stop = func() {
		stopOnce.Do(func() {
			err := s.Shutdown(context.Background())
			if err != nil {
				l.Errorw("http shutdown", "error", err)
			}
			err = store.Close()
			if err != nil && !errors.Is(err, database.ErrStoreClosed) {
				l.Errorw("close store", "error", err)
			}
			l.Sync()
		})
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for {
			sig := <-signalChan
			l.Infow("signal received", "signal", sig.String())
			stop()
		}
	}()

	start = func() {

		err := store.Initialize()
		if err != nil {
			l.Errorw("initialize store", "error", err)
			ln.Close()
			return
		}

		created, err := store.EnsureAdmin(c.AdminUsername, c.AdminPassword)
		if err != nil {
			l.Errorw("ensure admin", "error", err)
		}
		if created {
			l.Infow("admin created", "username", c.AdminUsername)
		}

		err = s.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorw("serve", "error", err)
		}

		// waits for a signal triggered stop to finish the final flush
		stop()
	}

	return
}
