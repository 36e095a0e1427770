package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/zap"

	dig_container "github.com/trezcool/skytraining/apps/api/di/dig"
	echoapi "github.com/trezcool/skytraining/apps/api/echo"
	"github.com/trezcool/skytraining/core"
)

func main() {
	conf := core.NewConfig()
	c := dig_container.New(conf)

	must(c.Invoke(func(
		apiLogger core.Logger,
		zl *zap.Logger,
		closers dig_container.Closers,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
		core.ParseEmailTemplates(conf, apiLogger)

		defer func() { _ = zl.Sync() }()
		defer func() {
			if err := closers.RateLimit(); err != nil {
				apiLogger.Error("closing rate limiter store", err)
			}
		}()
		defer func() {
			if err := closers.DB(); err != nil {
				apiLogger.Error("closing database", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		if conf.Server.DebugHost != "" {
			go func() {
				if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
					apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
				}
			}()
		}

		// =========================================================================
		// Start API Service

		go server.Start()
		apiLogger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
