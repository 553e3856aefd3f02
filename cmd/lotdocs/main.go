// Package main is the lotdocs CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/lotdocs/internal/archive"
	"github.com/hyperjump/lotdocs/internal/cli"
	"github.com/hyperjump/lotdocs/internal/config"
	"github.com/hyperjump/lotdocs/internal/convert"
	"github.com/hyperjump/lotdocs/internal/extract"
	"github.com/hyperjump/lotdocs/internal/fetch"
	"github.com/hyperjump/lotdocs/internal/indexer"
	"github.com/hyperjump/lotdocs/internal/keyword"
	"github.com/hyperjump/lotdocs/internal/models"
	"github.com/hyperjump/lotdocs/internal/ocr"
	"github.com/hyperjump/lotdocs/internal/office"
	"github.com/hyperjump/lotdocs/internal/orchestrator"
	"github.com/hyperjump/lotdocs/internal/portal"
	"github.com/hyperjump/lotdocs/internal/search"
	"github.com/hyperjump/lotdocs/internal/server"
	"github.com/hyperjump/lotdocs/internal/stage"
	"github.com/hyperjump/lotdocs/internal/storage"
	"github.com/hyperjump/lotdocs/internal/watcher"
	"github.com/hyperjump/lotdocs/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/lotdocs/config.yaml"

const exampleQueryURL = "https://www.tektorg.ru/procedures?q=%D0%A3%D0%B7%D0%B5%D0%BB+%D1%83%D1%87%D0%B5%D1%82%D0%B0+%D0%BD%D0%B5%D1%84%D1%82%D0%B8"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, and a missing default file means built-in defaults.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "(defaults)", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newLogger builds the logger from the config, with a non-empty -logging flag taking precedence.
func newLogger(cfg *config.Config, level string) (*zap.Logger, error) {
	if level == "" {
		level = cfg.Logging
	}
	return utils.NewLogger(cfg.Debug, level)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	command, rest := args[0], args[1:]
	switch command {
	case "query":
		return runQuery(ctx, rest, stdout, stderr)
	case "convert":
		return runConvert(ctx, rest, stdout, stderr)
	case "expand":
		return runExpand(ctx, rest, stdout, stderr)
	case "extract":
		return runExtract(ctx, rest, stdout, stderr)
	case "search":
		return runSearch(ctx, rest, stdout, stderr)
	case "status":
		return runStatus(ctx, rest, stdout, stderr)
	case "index":
		return runIndex(ctx, rest, stdout, stderr)
	case "serve":
		return runServe(ctx, rest, stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "lotdocs version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(ctx context.Context, stderr io.Writer, err error) int {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		fmt.Fprintln(stderr, "Interrupted.")
		return 130
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. Go's flag package stops at the
// first non-flag argument, so "lotdocs search трубы -limit 5" would otherwise leave
// -limit unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// commonFlags are shared by the subcommands that read the config.
type commonFlags struct {
	configPath string
	logging    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", defaultConfigPath, "config file path")
	fs.StringVar(&c.logging, "logging", "", "verbosity: "+strings.Join(utils.LogLevels, ", ")+" (default from config)")
}

// setup loads the config and builds the logger, reporting failures on stderr.
func (c *commonFlags) setup(stderr io.Writer) (*config.Config, *zap.Logger, bool) {
	cfg, resolved, err := loadConfig(c.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return nil, nil, false
	}
	logger, err := newLogger(cfg, c.logging)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return nil, nil, false
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.String("workdir", cfg.Workdir))
	return cfg, logger, true
}

// newExtractor wires the OCR engine and the office converter from cfg. Without OCR, PDFs are
// read from their text layer only.
func newExtractor(cfg *config.Config, logger *zap.Logger, useOCR bool) *extract.Extractor {
	opts := []extract.Option{
		extract.WithOfficeConverter(office.NewSoffice(cfg.Tools.Soffice, office.WithLogger(logger))),
		extract.WithLogger(logger),
	}
	if useOCR {
		engine := ocr.NewEngine(ocr.Config{
			Pdftoppm:    cfg.Tools.Pdftoppm,
			Tesseract:   cfg.Tools.Tesseract,
			Language:    cfg.OCR.Language,
			TessdataDir: cfg.Tools.TessdataDir,
			DPI:         cfg.OCR.DPI,
			MaxPages:    cfg.OCR.MaxPages,
		}, ocr.WithLogger(logger))
		opts = append(opts, extract.WithOCR(engine))
	}
	return extract.NewExtractor(opts...)
}

func newPipeline(cfg *config.Config, x convert.TextExtractor, logger *zap.Logger) *convert.Pipeline {
	return convert.NewPipeline(x,
		convert.WithExtensions(cfg.Convert.Extensions),
		convert.WithStopDirOnSkip(cfg.Convert.StopDirOnSkip),
		convert.WithLogger(logger))
}

func runQuery(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	forceDownload := fs.Bool("force-download", false, "download attachments even if already present")
	forceExpand := fs.Bool("force-expand", false, "re-expand archives even if already expanded")
	forceConvert := fs.Bool("force-convert", false, "re-convert documents even if already converted")
	link := fs.String("link", "", "query directory mode: copy or symlink (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lotdocs query [flags] <url>\n\nURL of a portal search, e.g.\n  %s\n\n", exampleQueryURL)
		fs.PrintDefaults()
	}
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()

	cfg.Stages.ForceDownload = cfg.Stages.ForceDownload || *forceDownload
	cfg.Stages.ForceExpand = cfg.Stages.ForceExpand || *forceExpand
	cfg.Stages.ForceConvert = cfg.Stages.ForceConvert || *forceConvert
	if *link != "" {
		cfg.Output.LinkMode = *link
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid settings: %v\n", err)
		return 1
	}

	queryURL := fs.Arg(0)
	if !strings.HasPrefix(queryURL, cfg.Portal.URLPrefix) {
		fmt.Fprintf(stderr, "Invalid url. Example of valid url:\n%s\n", exampleQueryURL)
		return 1
	}
	if err := cfg.ValidateTools(nil); err != nil {
		fmt.Fprintf(stderr, "External tool missing: %v\nCheck the tools section of the config.\n", err)
		return 1
	}

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.LedgerPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open ledger: %v\n", err)
		return 1
	}
	defer ledger.Close()

	opts := []orchestrator.Option{
		orchestrator.WithLedger(ledger),
		orchestrator.WithLinkMode(cfg.Output.LinkMode),
		orchestrator.WithNameMaxLen(cfg.Output.NameMaxLen),
		orchestrator.WithLogger(logger),
	}
	if cfg.Search.EnabledOrDefault() {
		kw, err := keyword.NewBleveIndex(cfg.Search.IndexPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open search index: %v\n", err)
			return 1
		}
		defer kw.Close()
		opts = append(opts, orchestrator.WithIndexer(indexer.NewIndexer(kw, indexer.WithLogger(logger))))
	}

	fetcher := fetch.NewClient(
		fetch.WithTimeout(cfg.Portal.Timeout),
		fetch.WithUserAgent(cfg.Portal.UserAgent),
		fetch.WithLogger(logger))
	sel := cfg.Portal.Selectors
	portalClient := portal.NewClient(fetcher, portal.Selectors{
		LotList:     sel.LotList,
		LotName:     sel.LotName,
		ArchiveLink: sel.ArchiveLink,
		FileLinks:   sel.FileLinks,
	}, portal.WithItemized(cfg.Portal.DownloadMode == config.DownloadItemized), portal.WithLogger(logger))

	orch := orchestrator.New(cfg.Workdir, portalClient, fetcher, storage.NewJSONStore(cfg.Workdir),
		stage.NewCache(stage.Force{
			Download: cfg.Stages.ForceDownload,
			Expand:   cfg.Stages.ForceExpand,
			Convert:  cfg.Stages.ForceConvert,
		}, logger),
		archive.NewExpander(archive.WithRemoveArchives(true), archive.WithLogger(logger)),
		newPipeline(cfg, newExtractor(cfg, logger, true), logger),
		opts...)

	out, err := orch.ProcessQuery(ctx, queryURL)
	if err != nil {
		if errors.Is(err, orchestrator.ErrClearOutput) {
			fmt.Fprintf(stderr, "%v\nClose the files stored there or delete the directory manually, then run again.\n", err)
			return 1
		}
		return exitCode(ctx, stderr, err)
	}
	fmt.Fprintf(stdout, "\nDone. Output:\n%s\n\n", out)
	return 0
}

func runConvert(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	force := fs.Bool("force", false, "clear and rebuild the destination even if it is not empty")
	noOCR := fs.Bool("no-ocr", false, "read PDFs from their text layer instead of running OCR")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lotdocs convert [flags] <src> <dst>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()
	if !*noOCR {
		if err := cfg.ValidateTools(nil); err != nil {
			fmt.Fprintf(stderr, "External tool missing: %v\nUse -no-ocr to convert without OCR.\n", err)
			return 1
		}
	}

	src, dst := fs.Arg(0), fs.Arg(1)
	res, err := newPipeline(cfg, newExtractor(cfg, logger, !*noOCR), logger).Run(ctx, src, dst, *force)
	if err != nil {
		return exitCode(ctx, stderr, err)
	}
	if err := cli.WriteConversionResult(stdout, dst, res, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

func runExpand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("expand", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keep := fs.Bool("keep-archives", false, "keep archive files after unpacking")
	logging := fs.String("logging", "", "verbosity: "+strings.Join(utils.LogLevels, ", "))
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lotdocs expand [flags] <archive-or-dir>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	logger, err := utils.NewLogger(false, *logging)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	x := archive.NewExpander(archive.WithRemoveArchives(!*keep), archive.WithLogger(logger))
	created, err := x.Expand(ctx, fs.Arg(0))
	if err != nil {
		return exitCode(ctx, stderr, err)
	}
	for _, dir := range created {
		fmt.Fprintln(stdout, dir)
	}
	return 0
}

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	noOCR := fs.Bool("no-ocr", false, "read PDFs from their text layer instead of running OCR")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lotdocs extract [flags] <file>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()

	text, err := newExtractor(cfg, logger, !*noOCR).Extract(ctx, fs.Arg(0))
	if err != nil {
		return exitCode(ctx, stderr, err)
	}
	fmt.Fprint(stdout, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(stdout)
	}
	return 0
}

func runSearch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	limit := fs.Int("limit", 0, "number of results (default from config)")
	lot := fs.String("lot", "", "restrict results to one lot ID")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lotdocs search [flags] <terms...>\n\n")
		fmt.Fprintf(fs.Output(), "Terms are all remaining arguments joined by spaces.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argsReorder(args)); err != nil {
		return 1
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fs.Usage()
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()

	kw, err := keyword.NewBleveIndex(cfg.Search.IndexPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open search index: %v\n", err)
		return 1
	}
	defer kw.Close()

	highlight := keyword.HighlightANSI
	if format == cli.OutputJSON {
		highlight = keyword.HighlightHTML
	}
	engine := search.NewEngine(kw, &cfg.Search, search.WithHighlight(highlight))
	query := &models.SearchQuery{Query: queryStr, Limit: *limit, LotID: *lot, Fuzzy: *fuzzy}
	response, err := engine.Search(ctx, query)
	if err != nil {
		return exitCode(ctx, stderr, err)
	}
	// Retry with fuzzy matching when an exact search finds nothing.
	if response.Total == 0 && !query.Fuzzy && !cfg.Search.Fuzzy {
		query.Fuzzy = true
		fuzzyResponse, fuzzyErr := engine.Search(ctx, query)
		if fuzzyErr == nil && fuzzyResponse.Total > 0 {
			response = fuzzyResponse
			response.AutoFuzzy = true
		}
	}
	if err := cli.WriteSearchResults(stdout, response, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

// collectStatus gathers the latest stage outcome per lot, stage directory sizes and, when kw is
// set, the indexed document count. A missing ledger means no runs yet.
func collectStatus(ctx context.Context, cfg *config.Config, kw keyword.KeywordIndex) (*cli.Status, error) {
	status := &cli.Status{Workdir: cfg.Workdir}
	if _, err := os.Stat(cfg.Storage.LedgerPath); err == nil {
		ledger, err := storage.NewSQLiteLedger(cfg.Storage.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()
		if status.Stages, err = ledger.LatestStages(ctx); err != nil {
			return nil, err
		}
	}
	usage, err := storage.StageUsage(cfg.Workdir)
	if err != nil {
		return nil, err
	}
	status.Usage = usage
	if kw != nil {
		if n, err := kw.DocCount(); err == nil {
			status.IndexedDocs = &n
		}
	}
	return status, nil
}

func runStatus(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()

	var kw keyword.KeywordIndex
	if _, err := os.Stat(cfg.Search.IndexPath); err == nil {
		bi, err := keyword.NewBleveIndex(cfg.Search.IndexPath)
		if err != nil {
			logger.Warn("search index unavailable", zap.String("path", cfg.Search.IndexPath), zap.Error(err))
		} else {
			defer bi.Close()
			kw = bi
		}
	}
	status, err := collectStatus(ctx, cfg, kw)
	if err != nil {
		return exitCode(ctx, stderr, err)
	}
	if err := cli.WriteStatus(stdout, status, format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

// startIndexWatch reindexes a lot whenever its text tree changes, until ctx is done.
func startIndexWatch(ctx context.Context, cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) (*watcher.Watcher, error) {
	textRoot := filepath.Join(cfg.Workdir, models.TextSubdir)
	store := storage.NewJSONStore(cfg.Workdir)
	w := watcher.NewWatcher(textRoot, func(lotID string) {
		names, err := store.LotNames()
		if err != nil {
			logger.Warn("failed to read lot names", zap.Error(err))
		}
		lot := &models.Lot{ID: lotID, Name: names[lotID]}
		stats, err := idx.IndexLot(ctx, lot, filepath.Join(textRoot, lotID))
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("failed to reindex lot", zap.String("lot_id", lotID), zap.Error(err))
			}
			return
		}
		logger.Info("lot reindexed", zap.String("lot_id", lotID),
			zap.Int("indexed", stats.Indexed), zap.Int("unchanged", stats.Unchanged), zap.Int("removed", stats.Removed))
	}, watcher.WithDebounce(cfg.Watch.Debounce), watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("watch %s: %w", textRoot, err)
	}
	return w, nil
}

// indexWorkdir brings the index in line with every lot under <workdir>/txt.
func indexWorkdir(ctx context.Context, cfg *config.Config, idx *indexer.Indexer) (indexer.Stats, error) {
	names, err := storage.NewJSONStore(cfg.Workdir).LotNames()
	if err != nil {
		return indexer.Stats{}, err
	}
	return idx.IndexTree(ctx, filepath.Join(cfg.Workdir, models.TextSubdir), names)
}

func runIndex(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	watch := fs.Bool("watch", false, "keep running and reindex lots whose text changes")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()

	kw, err := keyword.NewBleveIndex(cfg.Search.IndexPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open search index: %v\n", err)
		return 1
	}
	defer kw.Close()
	idx := indexer.NewIndexer(kw, indexer.WithLogger(logger))

	stats, err := indexWorkdir(ctx, cfg, idx)
	if err != nil {
		return exitCode(ctx, stderr, err)
	}
	fmt.Fprintf(stdout, "Indexed: %d, unchanged: %d, removed: %d\n", stats.Indexed, stats.Unchanged, stats.Removed)
	if !*watch {
		return 0
	}

	w, err := startIndexWatch(ctx, cfg, idx, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer w.Stop()
	fmt.Fprintf(stdout, "Watching %s (Ctrl+C to stop)\n", filepath.Join(cfg.Workdir, models.TextSubdir))
	<-ctx.Done()
	return 0
}

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	host := fs.String("host", "", "listen host (default from config)")
	port := fs.Int("port", 0, "listen port (default from config)")
	watch := fs.Bool("watch", false, "reindex lots whose text changes while serving")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, logger, ok := common.setup(stderr)
	if !ok {
		return 1
	}
	defer logger.Sync()
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	kw, err := keyword.NewBleveIndex(cfg.Search.IndexPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open search index: %v\n", err)
		return 1
	}
	defer kw.Close()

	if *watch {
		idx := indexer.NewIndexer(kw, indexer.WithLogger(logger))
		if _, err := indexWorkdir(ctx, cfg, idx); err != nil {
			return exitCode(ctx, stderr, err)
		}
		w, err := startIndexWatch(ctx, cfg, idx, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer w.Stop()
	}

	engine := search.NewEngine(kw, &cfg.Search, search.WithHighlight(keyword.HighlightHTML))
	statusFn := func(ctx context.Context) (*cli.Status, error) { return collectStatus(ctx, cfg, kw) }
	srv := server.NewServer(engine, statusFn, &cfg.Server, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Fprintf(stdout, "Listening on http://%s\n", srv.Addr())
	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(stderr, "Server failed: %v\n", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `lotdocs - tender lot document downloader and text converter

Usage:
  lotdocs query [flags] <url>          Download, expand and convert every lot of a portal search
  lotdocs convert [flags] <src> <dst>  Convert a directory tree of documents to .txt files
  lotdocs expand [flags] <path>        Recursively unpack zip/rar archives
  lotdocs extract [flags] <file>       Print the text of one document
  lotdocs search [flags] <terms...>    Search the converted text
  lotdocs status [flags]               Show stage status per lot and disk usage
  lotdocs index [flags]                Rebuild the search index from <workdir>/txt
  lotdocs serve [flags]                Serve the search API over HTTP
  lotdocs version                      Show version
  lotdocs help                         Show this help

Common Flags:
  -config string    Config file path (default: %s, ./config.yaml preferred)
  -logging string   DEBUG, INFO, WARNING or ERROR (default from config)

Query Flags:
  -force-download, -force-expand, -force-convert   Rerun a stage even if its output exists
  -link string      copy or symlink lot directories into <workdir>/query

Convert Flags:
  -force            Clear and rebuild the destination
  -no-ocr           Read PDFs from their text layer
  -output string    text or json

Expand Flags:
  -keep-archives    Keep archive files after unpacking

Search Flags:
  -limit int        Number of results (default from config)
  -lot string       Restrict to one lot ID
  -fuzzy            Typo-tolerant matching
  -output string    text or json

Index Flags:
  -watch            Keep running and reindex lots whose text changes

Serve Flags:
  -host string      Listen host (default from config)
  -port int         Listen port (default from config)
  -watch            Reindex lots whose text changes while serving

Examples:
  lotdocs query "%s"
  lotdocs query -logging DEBUG -force-convert "<url>"
  lotdocs convert -no-ocr ./unzipped ./txt
  lotdocs search техническое задание
  lotdocs search -lot 1234567 -output json смета
  lotdocs status
  lotdocs serve -port 9000 -watch
`, defaultConfigPath, exampleQueryURL)
}
