// Command relay runs the Message Dispatcher: it accepts websocket
// connections, serves the NIP-11 relay information document, and answers
// EVENT/REQ/CLOSE frames against the Primary Event Log and both secondary
// indices. It does not run the CDC Indexer or the Rebuilder — those are
// separate binaries (cmd/indexer, cmd/rebuilder) sharing this process's
// store on-disk but running in their own lifecycle, per SPEC_FULL.md's
// supplemented "separate binaries" decision.
//
// Grounded on main.go: GOMAXPROCS tuning, config load, pprof mode switch,
// optional health-check HTTP server, signal-driven graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/pkg/profile"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/config"
	"github.com/nostrcore/relay/internal/dispatcher"
	"github.com/nostrcore/relay/internal/relayinfo"
	"github.com/nostrcore/relay/internal/searchindex"
	"github.com/nostrcore/relay/internal/sqlindex"
	"github.com/nostrcore/relay/internal/store"
)

// Version is the relay's software version, reported in the NIP-11 document.
const Version = "0.1.0"

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU() * 4)

	cfg, err := config.Load()
	if chk.T(err) {
		os.Exit(1)
	}
	log.I.F("starting %s %s", cfg.AppName, Version)

	switch cfg.Pprof {
	case "cpu":
		defer profile.Start(profile.CPUProfile).Stop()
	case "memory":
		defer profile.Start(profile.MemProfile).Stop()
	case "allocation":
		defer profile.Start(profile.MemProfileAllocs).Stop()
	}

	db, err := store.Open(store.Options{DataDir: cfg.DataDir})
	if chk.E(err) {
		os.Exit(1)
	}
	defer db.Close()

	var search *searchindex.Client
	if cfg.OpenSearchEndpoint != "" {
		search, err = searchindex.NewClient(searchindex.Config{
			Addresses: []string{cfg.OpenSearchEndpoint},
			Username:  cfg.OpenSearchUsername,
			Password:  cfg.OpenSearchPassword,
			Index:     cfg.OpenSearchIndex,
		})
		if chk.E(err) {
			os.Exit(1)
		}
	}

	var sql *sqlindex.Client
	if cfg.SQLiteAPIEndpoint != "" {
		sql = sqlindex.NewClient(sqlindex.Config{
			BaseURL:     cfg.SQLiteAPIEndpoint,
			BearerToken: cfg.SQLiteAPIToken,
		})
	}

	queries := &dispatcher.Query{Store: db, Search: search, SQL: sql}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := dispatcher.New(ctx, db, queries, relayinfo.Config{
		Name:        cfg.AppName,
		Description: fmt.Sprintf("%s nostr relay", cfg.AppName),
		Software:    "github.com/nostrcore/relay",
		Version:     Version,
	})
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Listen, cfg.Port),
		Handler: srv,
	}
	go func() {
		log.I.F("listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.E.F("relay server error: %v", err)
		}
	}()

	var healthSrv *http.Server
	if cfg.HealthPort > 0 {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		// /shutdown represents the out-of-scope budget controller's trigger
		// surface (SPEC_FULL.md §4's shutdown.rs collaborator note): it
		// signals this process to stop, it does not implement the
		// controller's own budget/scheduling logic.
		if cfg.EnableShutdown {
			mux.HandleFunc("/shutdown", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("shutting down"))
				log.I.F("shutdown requested via /shutdown")
				go func() {
					p, _ := os.FindProcess(os.Getpid())
					_ = p.Signal(os.Interrupt)
				}()
			})
		}
		healthSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Listen, cfg.HealthPort),
			Handler: mux,
		}
		go func() {
			log.I.F("health check server listening on %s", healthSrv.Addr)
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.E.F("health server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
	log.I.F("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if healthSrv != nil {
		_ = healthSrv.Shutdown(shutdownCtx)
	}
}
