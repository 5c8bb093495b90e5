// Command gbiz-collector dumps corporate numbers and names from the
// gBizINFO registry per prefecture, enriches them with basic attributes,
// and post-processes the collected CSV files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hojin-tools/gbiz-collector/pkg/cache"
	"github.com/hojin-tools/gbiz-collector/pkg/client"
	"github.com/hojin-tools/gbiz-collector/pkg/collector"
	"github.com/hojin-tools/gbiz-collector/pkg/config"
	"github.com/hojin-tools/gbiz-collector/pkg/export"
	"github.com/hojin-tools/gbiz-collector/pkg/hydrator"
	"github.com/hojin-tools/gbiz-collector/pkg/logging"
	"github.com/hojin-tools/gbiz-collector/pkg/sqlite"
)

// tokenEnv is the environment variable carrying the API credential.
const tokenEnv = "GBIZ_API_TOKEN"

const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage(os.Stderr)
		return exitConfig
	}

	switch args[0] {
	case "dump":
		return runDump(args[1:])
	case "hydrate":
		return runHydrate(args[1:])
	case "pipeline":
		return runPipeline(args[1:])
	case "import":
		return runImport(args[1:])
	case "export":
		return runExport(args[1:])
	case "help", "-h", "--help":
		usage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage(os.Stderr)
		return exitConfig
	}
}

func usage(w *os.File) {
	fmt.Fprint(w, `gbiz-collector: corporate registry dump -> enrich pipeline

Commands:
  dump      collect corporate numbers and names per prefecture
  hydrate   fetch basic attributes for collected corporate numbers
  pipeline  dump then hydrate in one run
  import    load collected CSVs into a SQLite database
  export    convert a collected CSV into an XLSX workbook

Run "gbiz-collector <command> -h" for command flags.
The dump/hydrate/pipeline commands require GBIZ_API_TOKEN in the environment.
`)
}

// globalFlags are registered on every subcommand's flag set.
type globalFlags struct {
	configPath string
	logLevel   string
	pretty     bool
}

func addGlobalFlags(fs *flag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.configPath, "config", "", "optional YAML config file")
	fs.StringVar(&g.logLevel, "log-level", "", "log level (debug/info/warn/error)")
	fs.BoolVar(&g.pretty, "pretty", false, "human-readable log output")
	return g
}

// setup loads configuration and wires the global logger with a run id.
func setup(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: g.pretty || cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	log.Logger = log.Logger.With().Str("run_id", uuid.NewString()).Logger()
	return cfg, nil
}

// newAPIClient builds the registry client from config plus the token from
// the environment. A missing token is the configuration error the CLI
// reports with its distinct exit code before any network call.
func newAPIClient(cfg *config.Config) (*client.Client, error) {
	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil, client.ErrMissingToken
	}

	clientCfg := client.Config{
		Token:     token,
		BaseURL:   cfg.API.BaseURL,
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.API.Timeout,
		Retry: client.RetryConfig{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		},
	}

	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The cache is an optimization; run without it.
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unavailable, caching disabled")
			rdb.Close()
		} else {
			clientCfg.Cache = cache.NewManager(rdb, cfg.Cache.TTL)
		}
	}

	return client.New(clientCfg)
}

// dumpFlags is the flag surface shared by dump and pipeline.
type dumpFlags struct {
	pref          string
	corporateType string
	existFlag     string
	limit         int
	maxPages      int
}

func addDumpFlags(fs *flag.FlagSet) *dumpFlags {
	d := &dumpFlags{}
	fs.StringVar(&d.pref, "pref", "all", `prefecture code 01-47, or "all"`)
	fs.StringVar(&d.corporateType, "corporate-type", "301", "corporate type code (301=KK, 305=LLC, ...)")
	fs.StringVar(&d.existFlag, "exist-flg", "any", "activity filter: true / false / any")
	fs.IntVar(&d.limit, "limit", 5000, "page size (1-5000)")
	fs.IntVar(&d.maxPages, "max-pages", 10, "page ceiling per prefecture (1-10)")
	return d
}

func (d *dumpFlags) prefectures() []string {
	if d.pref == "all" {
		return collector.AllPrefectures()
	}
	return []string{d.pref}
}

func (d *dumpFlags) existParam() string {
	if d.existFlag == "true" || d.existFlag == "false" {
		return d.existFlag
	}
	return ""
}

func runDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	g := addGlobalFlags(fs)
	d := addDumpFlags(fs)
	out := fs.String("out", "gbiz_list.csv", "output CSV path (corporate_number, name)")
	sleep := fs.Duration("sleep", 200*time.Millisecond, "pause between prefectures")
	resume := fs.Bool("resume", false, "skip corporate numbers already in the output")
	norm := fs.Bool("normalize", false, "fold width variants in corporation names")
	fs.Parse(args)

	cfg, err := setup(g)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return exitError
	}

	api, err := newAPIClient(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Client setup failed")
		return exitConfig
	}
	defer api.Close()

	added, err := collector.New(api).Dump(context.Background(), collector.DumpOptions{
		Out:           *out,
		Prefectures:   d.prefectures(),
		CorporateType: d.corporateType,
		ExistFlag:     d.existParam(),
		Limit:         d.limit,
		MaxPages:      d.maxPages,
		Sleep:         *sleep,
		Resume:        *resume,
		Normalize:     *norm,
	})
	if err != nil {
		log.Error().Err(err).Int("added", added).Msg("Dump aborted")
		return exitError
	}

	fmt.Printf("OK: %d rows appended -> %s\n", added, *out)
	return exitOK
}

// hydrateFlags is the flag surface shared by hydrate and pipeline.
type hydrateFlags struct {
	sleep            time.Duration
	resume           bool
	progressEvery    int
	progressInterval time.Duration
	normalize        bool
}

func addHydrateFlags(fs *flag.FlagSet) *hydrateFlags {
	h := &hydrateFlags{}
	fs.DurationVar(&h.sleep, "sleep", 200*time.Millisecond, "pause between detail requests")
	fs.BoolVar(&h.resume, "resume", false, "skip corporate numbers already in the output")
	fs.IntVar(&h.progressEvery, "progress-every", 50, "progress line every N rows (0 disables)")
	fs.DurationVar(&h.progressInterval, "progress-interval", 0, "progress line every interval (0 disables)")
	fs.BoolVar(&h.normalize, "normalize", false, "fold width variants in corporation names")
	return h
}

func runHydrate(args []string) int {
	fs := flag.NewFlagSet("hydrate", flag.ExitOnError)
	g := addGlobalFlags(fs)
	h := addHydrateFlags(fs)
	in := fs.String("in", "gbiz_list.csv", "input CSV path (corporate_number, name)")
	out := fs.String("out", "gbiz_enriched.csv", "output CSV path (basic attributes)")
	fs.Parse(args)

	cfg, err := setup(g)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return exitError
	}

	api, err := newAPIClient(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Client setup failed")
		return exitConfig
	}
	defer api.Close()

	return hydrate(api, *in, *out, h)
}

func hydrate(api *client.Client, in, out string, h *hydrateFlags) int {
	_, err := hydrator.New(api).Run(context.Background(), hydrator.Options{
		In:               in,
		Out:              out,
		Sleep:            h.sleep,
		Resume:           h.resume,
		ProgressEvery:    h.progressEvery,
		ProgressInterval: h.progressInterval,
		Normalize:        h.normalize,
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Missing input means zero work, not a broken run.
			log.Error().Err(err).Msg("Hydrate input not found")
			return exitOK
		}
		log.Error().Err(err).Msg("Hydrate aborted")
		return exitError
	}
	return exitOK
}

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	g := addGlobalFlags(fs)
	d := addDumpFlags(fs)
	h := addHydrateFlags(fs)
	listOut := fs.String("list-out", "gbiz_list.csv", "dump output CSV")
	enrichOut := fs.String("enrich-out", "gbiz_enriched.csv", "hydrate output CSV")
	fs.Parse(args)

	cfg, err := setup(g)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return exitError
	}

	api, err := newAPIClient(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Client setup failed")
		return exitConfig
	}
	defer api.Close()

	added, err := collector.New(api).Dump(context.Background(), collector.DumpOptions{
		Out:           *listOut,
		Prefectures:   d.prefectures(),
		CorporateType: d.corporateType,
		ExistFlag:     d.existParam(),
		Limit:         d.limit,
		MaxPages:      d.maxPages,
		Sleep:         h.sleep,
		Resume:        h.resume,
		Normalize:     h.normalize,
	})
	if err != nil {
		log.Error().Err(err).Int("added", added).Msg("Dump aborted")
		return exitError
	}
	fmt.Printf("OK: %d rows appended -> %s\n", added, *listOut)

	return hydrate(api, *listOut, *enrichOut, h)
}

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	g := addGlobalFlags(fs)
	list := fs.String("list", "gbiz_list.csv", "list CSV to import")
	enriched := fs.String("enriched", "gbiz_enriched.csv", "enriched CSV to import")
	db := fs.String("db", "gbiz.db", "SQLite database path")
	fs.Parse(args)

	if _, err := setup(g); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return exitError
	}

	if err := sqlite.ImportCSV(context.Background(), *db, *list, *enriched); err != nil {
		log.Error().Err(err).Msg("Import failed")
		return exitError
	}
	fmt.Printf("OK: imported -> %s\n", *db)
	return exitOK
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	g := addGlobalFlags(fs)
	in := fs.String("in", "gbiz_enriched.csv", "input CSV path")
	out := fs.String("out", "", "output XLSX path (default <in>.xlsx)")
	sheet := fs.String("sheet", export.DefaultSheet, "worksheet name")
	fs.Parse(args)

	if _, err := setup(g); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return exitError
	}

	dest := *out
	if dest == "" {
		dest = *in + ".xlsx"
	}

	rows, err := export.CSVToXLSX(*in, dest, *sheet)
	if err != nil {
		log.Error().Err(err).Msg("Export failed")
		return exitError
	}
	fmt.Printf("OK: %d rows exported -> %s\n", rows, dest)
	return exitOK
}
