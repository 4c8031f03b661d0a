// Command indexer runs the CDC Indexer: it consumes the Primary Event Log's
// change-record stream and projects every insert/modify/remove into the
// search index and SQL index, per spec.md §4.8. It shares the on-disk
// Primary Event Log with cmd/relay (both open the same badger directory)
// but runs as its own process so the indexer's lifecycle — restarts,
// backoff, crash isolation — doesn't take the relay's websocket listener
// down with it, per SPEC_FULL.md's supplemented "separate binaries"
// decision.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/cdc"
	"github.com/nostrcore/relay/internal/config"
	"github.com/nostrcore/relay/internal/searchindex"
	"github.com/nostrcore/relay/internal/sqlindex"
	"github.com/nostrcore/relay/internal/store"
)

// ChangeStreamBuffer is the Subscribe buffer depth for this process's
// change-record channel.
const ChangeStreamBuffer = 1024

// BatchSize bounds how many change records ConsumeLoop accumulates before
// running one ProcessBatch pass.
const BatchSize = 100

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU() * 2)

	cfg, err := config.Load()
	if chk.T(err) {
		os.Exit(1)
	}
	log.I.F("starting %s indexer", cfg.AppName)

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

	if search == nil && sql == nil {
		log.E.F("indexer: neither OPENSEARCH_ENDPOINT nor SQLITE_API_ENDPOINT configured, nothing to project into")
		os.Exit(1)
	}

	idx := cdc.New(search, sql)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := db.Subscribe(ChangeStreamBuffer)
	go idx.ConsumeLoop(ctx, ch, BatchSize)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
	log.I.F("indexer: shutting down")
	cancel()
}
