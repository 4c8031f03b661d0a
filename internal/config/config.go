// Package config loads the relay's environment configuration, following
// app/config/config.go's go-simpler.org/env struct-tag pattern.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"go-simpler.org/env"
	lol "lol.mleku.dev"
)

// C holds every environment-configurable setting for the relay, indexer,
// and rebuilder binaries. spec.md §6 enumerates the DynamoDB-era table and
// endpoint names (EVENTS_TABLE, CONNECTIONS_TABLE, SUBSCRIPTIONS_TABLE);
// this repo's Primary Event Log is an embedded badger store rather than
// DynamoDB, so those three collapse into DataDir. The OpenSearch, SQL index,
// and rebuild variables are carried with their original names since they
// name a real external collaborator rather than a storage-engine detail.
type C struct {
	AppName  string `env:"RELAY_APP_NAME" default:"nostrcore-relay" usage:"name displayed in the NIP-11 relay information document"`
	Listen   string `env:"RELAY_LISTEN" default:"0.0.0.0" usage:"network listen address"`
	Port     int    `env:"RELAY_PORT" default:"3334" usage:"port to listen on"`
	DataDir  string `env:"RELAY_DATA_DIR" usage:"storage location for the primary event log; defaults under the XDG data directory"`
	LogLevel string `env:"RELAY_LOG_LEVEL" default:"info" usage:"log level: fatal error warn info debug trace"`

	HealthPort     int    `env:"RELAY_HEALTH_PORT" default:"0" usage:"optional health-check HTTP port; 0 disables"`
	EnableShutdown bool   `env:"RELAY_ENABLE_SHUTDOWN" default:"false" usage:"expose a /shutdown trigger on the health port, for an external budget controller"`
	Pprof          string `env:"RELAY_PPROF" usage:"enable pprof in modes: cpu,memory,allocation"`

	// CreatedAtSkew is loaded and printed with the rest of the
	// configuration, but no component reads it: event.Validate applies only
	// its fixed MinCreatedAt/MaxCreatedAt range, so no wall-clock skew bound
	// is enforced whatever the value.
	CreatedAtSkew int `env:"RELAY_CREATED_AT_SKEW" default:"0" usage:"created_at skew in seconds from wall clock; read but not applied by the event validator"`

	OpenSearchEndpoint string `env:"OPENSEARCH_ENDPOINT" usage:"search index (OpenSearch/Elasticsearch) endpoint URL"`
	OpenSearchIndex    string `env:"OPENSEARCH_INDEX" default:"nostr_events" usage:"search index name"`
	OpenSearchUsername string `env:"OPENSEARCH_USERNAME" usage:"search index basic-auth username"`
	OpenSearchPassword string `env:"OPENSEARCH_PASSWORD" usage:"search index basic-auth password"`

	SQLiteAPIEndpoint string `env:"SQLITE_API_ENDPOINT" usage:"SQL index HTTP API base URL"`
	SQLiteAPIToken    string `env:"SQLITE_API_TOKEN" usage:"SQL index HTTP API bearer token"`

	RebuildBatchSize   int  `env:"REBUILD_BATCH_SIZE" default:"100" usage:"events per rebuild batch"`
	RebuildDeleteIndex bool `env:"REBUILD_DELETE_INDEX" default:"false" usage:"accepted for the search index only; the rebuilder does not drop the index, it logs a warning"`

	APIGatewayEndpoint string `env:"API_GATEWAY_ENDPOINT" usage:"unused in this deployment topology; retained for parity with spec.md §6's enumerated variables"`
}

// Load reads configuration from the environment, applying the same
// env/help/env-print CLI conventions as the teacher's config.New.
func Load() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		PrintHelp(cfg, os.Stderr)
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	if HelpRequested() {
		PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	if EnvRequested() {
		PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	}
	lol.SetLogLevel(cfg.LogLevel)
	return cfg, nil
}

// HelpRequested reports whether the first CLI argument asks for help.
func HelpRequested() bool {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "help", "-h", "--h", "-help", "--help", "?":
			return true
		}
	}
	return false
}

// EnvRequested reports whether the first CLI argument is "env".
func EnvRequested() bool {
	return len(os.Args) > 1 && strings.ToLower(os.Args[1]) == "env"
}

// PrintHelp writes usage and the current configuration to printer.
func PrintHelp(cfg *C, printer io.Writer) {
	fmt.Fprintf(printer, "%s\n\n", cfg.AppName)
	fmt.Fprintf(printer, "Usage: %s [env|help]\n\n", cfg.AppName)
	env.Usage(cfg, printer, &env.Options{SliceSep: ","})
	fmt.Fprintf(printer, "\ncurrent configuration:\n\n")
	PrintEnv(cfg, printer)
}

// PrintEnv writes the current configuration as sorted KEY=value lines.
func PrintEnv(cfg *C, printer io.Writer) {
	kvs := envKV(cfg)
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].key < kvs[j].key })
	for _, kv := range kvs {
		fmt.Fprintf(printer, "%s=%s\n", kv.key, kv.value)
	}
}

type kv struct{ key, value string }

func envKV(cfg *C) []kv {
	return []kv{
		{"RELAY_APP_NAME", cfg.AppName},
		{"RELAY_LISTEN", cfg.Listen},
		{"RELAY_PORT", strconv.Itoa(cfg.Port)},
		{"RELAY_DATA_DIR", cfg.DataDir},
		{"RELAY_LOG_LEVEL", cfg.LogLevel},
		{"RELAY_HEALTH_PORT", strconv.Itoa(cfg.HealthPort)},
		{"RELAY_ENABLE_SHUTDOWN", strconv.FormatBool(cfg.EnableShutdown)},
		{"RELAY_PPROF", cfg.Pprof},
		{"RELAY_CREATED_AT_SKEW", strconv.Itoa(cfg.CreatedAtSkew)},
		{"OPENSEARCH_ENDPOINT", cfg.OpenSearchEndpoint},
		{"OPENSEARCH_INDEX", cfg.OpenSearchIndex},
		{"SQLITE_API_ENDPOINT", cfg.SQLiteAPIEndpoint},
		{"REBUILD_BATCH_SIZE", strconv.Itoa(cfg.RebuildBatchSize)},
		{"REBUILD_DELETE_INDEX", strconv.FormatBool(cfg.RebuildDeleteIndex)},
	}
}
