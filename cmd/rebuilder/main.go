// Command rebuilder runs one pass of the Rebuilder: a full scan of the
// Primary Event Log that re-projects every stored event into one secondary
// index, per spec.md §4.9. Unlike cmd/relay and cmd/indexer, this binary
// is not a long-running server — it runs a single bounded pass and exits,
// the way an operator-triggered backfill or disaster-recovery tool should.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"github.com/nostrcore/relay/internal/config"
	"github.com/nostrcore/relay/internal/rebuild"
	"github.com/nostrcore/relay/internal/searchindex"
	"github.com/nostrcore/relay/internal/sqlindex"
	"github.com/nostrcore/relay/internal/store"
)

func main() {
	target := flag.String("target", "", "secondary index to rebuild: search or sql")
	batchSize := flag.Int("batch-size", 0, "events per rebuild batch (0 uses the configured default)")
	startAfter := flag.Uint64("start-after", 0, "resume cursor: serial to scan after")
	deleteIndex := flag.Bool("delete-index", false, "accepted for the search target only; the index is not dropped, only a warning is logged")
	deadlineSeconds := flag.Int("deadline-seconds", 0, "abort and report a resume cursor after this many seconds (0 disables)")
	flag.Parse()

	cfg, err := config.Load()
	if chk.T(err) {
		os.Exit(1)
	}

	var rebuildTarget rebuild.Target
	switch *target {
	case "search":
		rebuildTarget = rebuild.TargetSearch
	case "sql":
		rebuildTarget = rebuild.TargetSQL
	default:
		fmt.Fprintf(os.Stderr, "rebuilder: --target must be \"search\" or \"sql\", got %q\n", *target)
		os.Exit(2)
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

	rb := rebuild.New(db, search, sql)

	effectiveBatchSize := *batchSize
	if effectiveBatchSize <= 0 {
		effectiveBatchSize = cfg.RebuildBatchSize
	}

	runCfg := rebuild.Config{
		Target:              rebuildTarget,
		BatchSize:           effectiveBatchSize,
		DeleteBeforeRebuild: *deleteIndex || cfg.RebuildDeleteIndex,
		StartAfter:          *startAfter,
	}
	if *deadlineSeconds > 0 {
		runCfg.Deadline = time.Now().Add(time.Duration(*deadlineSeconds) * time.Second)
	}

	log.I.F("rebuild starting: target=%s start_after=%d", rebuildTarget, *startAfter)

	report, err := rb.Run(context.Background(), runCfg)
	if chk.E(err) {
		os.Exit(1)
	}

	log.I.F(
		"rebuild finished: scanned=%d indexed=%d skipped=%d errors=%d next_cursor=%d complete=%t",
		report.Scanned, report.Indexed, report.Skipped, report.Errors, report.NextCursor, report.Complete,
	)
	if !report.Complete {
		fmt.Printf("resume with --start-after=%d\n", report.NextCursor)
		os.Exit(3)
	}
}
