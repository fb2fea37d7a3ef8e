package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"entityscout/internal/config"
	"entityscout/internal/discovery"
	"entityscout/internal/fetch"
	"entityscout/internal/inference"
	"entityscout/internal/logging"
	"entityscout/internal/pipeline"
	"entityscout/internal/store"
	"entityscout/internal/usage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Run flags
	flagModel       string
	flagProvider    string
	flagMaxRetries  int
	flagMinEntities int
	flagNoBrowser   bool
	flagNoStore     bool

	// Loaded at startup
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "entityscout - LLM-guided web research pipeline",
	Long: `entityscout researches a topic on the open web and distills it into
a ranked set of named entities.

A query is expanded into targeted search phrases, candidate pages are
discovered and fetched, sources are scored for credibility, and entities
are extracted and merged across sources. When too few entities surface,
the pipeline broadens its phrasing and tries again, up to a bounded
number of retries.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Debug = true
		}

		categories := map[string]bool{}
		for _, c := range cfg.Logging.Categories {
			categories[c] = true
		}
		if len(categories) == 0 {
			categories = nil
		}
		if err := logging.Initialize(workspace, logging.Options{
			Debug:      cfg.Logging.Debug,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.Format == "json",
			Categories: categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize file logging: %w", err)
		}
		logging.Boot("scout starting (config=%s workspace=%s)", configPath, workspace)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Research a query and print the extracted entities",
	Long: `Runs the full research pipeline for a natural-language query:

  1. Expand the query into targeted search phrases
  2. Discover candidate URLs via web search
  3. Fetch pages concurrently and gate on substance
  4. Score each source for credibility and relevance
  5. Extract and merge named entities across sources

Example:
  scout run "emerging open-source vector databases"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent research runs",
	RunE:  listRuns,
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show accumulated token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := usage.NewTracker(workspace)
		if err != nil {
			return err
		}
		fmt.Print(tracker.Report())
		return nil
	},
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider := cfg.LLM.Provider
	if flagProvider != "" {
		provider = flagProvider
	}
	model := cfg.LLM.Model
	if flagModel != "" {
		model = flagModel
	}

	llm, err := inference.New(inference.Options{
		Provider: provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    model,
	})
	if err != nil {
		return fmt.Errorf("failed to create inference client: %w", err)
	}

	searcher := discovery.NewClient()

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.UseBrowser = cfg.Crawl.UseBrowser && !flagNoBrowser
	fetchCfg.Timeout = cfg.FetchTimeout()
	if cfg.Crawl.UserAgent != "" {
		fetchCfg.UserAgent = cfg.Crawl.UserAgent
	}
	fetcher := fetch.New(fetchCfg)
	defer fetcher.Close()

	var persister pipeline.PersistPort
	var researchStore *store.ResearchStore
	if !flagNoStore {
		researchStore, err = store.NewResearchStore(cfg.Store.DatabasePath)
		if err != nil {
			logger.Warn("Persistence disabled", zap.Error(err))
		} else {
			defer researchStore.Close()
			persister = researchStore
		}
	}

	tracker, err := usage.NewTracker(workspace)
	if err != nil {
		logger.Warn("Usage tracking disabled", zap.Error(err))
		tracker = nil
	}

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.Model = model
	pipeCfg.MaxRetries = cfg.Pipeline.MaxRetries
	pipeCfg.MinEntityTarget = cfg.Pipeline.MinEntityTarget
	pipeCfg.MinCredibility = cfg.Pipeline.MinCredibility
	pipeCfg.MinWordCount = cfg.Pipeline.MinWordCount
	pipeCfg.MaxSearchResults = cfg.Crawl.MaxSearchResults
	pipeCfg.ConcurrentFetch = int64(cfg.Crawl.ConcurrentFetch)
	pipeCfg.InferenceTimeout = cfg.LLMTimeout()
	pipeCfg.SearchTimeout = cfg.SearchTimeout()
	pipeCfg.FetchTimeout = cfg.FetchTimeout()
	if flagMaxRetries >= 0 {
		pipeCfg.MaxRetries = flagMaxRetries
	}
	if flagMinEntities > 0 {
		pipeCfg.MinEntityTarget = flagMinEntities
	}

	deps := pipeline.Deps{
		Inference: llm,
		Discovery: searcher,
		Fetcher:   fetcher,
		Persister: persister,
	}
	if tracker != nil {
		deps.Usage = tracker
	}

	controller, err := pipeline.NewController(pipeCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	logger.Info("Starting research",
		zap.String("query", query),
		zap.String("provider", provider),
		zap.String("model", model))

	start := time.Now()
	result, err := controller.Execute(ctx, query)

	if researchStore != nil && result.RunID != "" {
		if berr := researchStore.BeginRun(context.Background(), result.RunID, query); berr != nil {
			logger.Debug("Failed to record run", zap.Error(berr))
		}
	}
	if tracker != nil {
		if serr := tracker.Save(); serr != nil {
			logger.Debug("Failed to save usage data", zap.Error(serr))
		}
	}

	if err != nil {
		// A fault still carries whatever was aggregated before it.
		logger.Error("Research run failed", zap.Error(err))
		printEntities(result, time.Since(start))
		return err
	}

	printEntities(result, time.Since(start))
	if tracker != nil {
		fmt.Println()
		fmt.Print(tracker.Report())
	}
	return nil
}

func printEntities(result pipeline.Result, elapsed time.Duration) {
	fmt.Printf("\nRun %s finished in %s (%d pass(es), reason: %s)\n",
		result.RunID, elapsed.Round(time.Millisecond), result.Passes, result.Reason)

	if len(result.Entities) == 0 {
		fmt.Println("No entities extracted.")
		return
	}

	fmt.Printf("Extracted %d entities:\n\n", len(result.Entities))
	for i, ent := range result.Entities {
		fmt.Printf("%2d. %s (priority %.2f)\n", i+1, ent.Name, ent.PriorityScore)
		if ent.Description != "" {
			fmt.Printf("    %s\n", ent.Description)
		}
		for key, value := range ent.Metrics {
			fmt.Printf("    %s: %s\n", key, value)
		}
		if len(ent.SourceURLs) > 0 {
			fmt.Printf("    sources: %s\n", strings.Join(ent.SourceURLs, ", "))
		}
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	researchStore, err := store.NewResearchStore(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer researchStore.Close()

	runs, err := researchStore.ListRuns(context.Background(), 20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  sources=%d entities=%d\n  %s\n",
			run.CreatedAt.Format("2006-01-02 15:04"), run.RunID,
			run.SourceCount, run.EntityCount, run.Query)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "scout.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", ".", "workspace directory for logs and usage data")

	runCmd.Flags().StringVar(&flagModel, "model", "", "override the configured model")
	runCmd.Flags().StringVar(&flagProvider, "provider", "", "override the configured provider (openai, gemini)")
	runCmd.Flags().IntVar(&flagMaxRetries, "max-retries", -1, "override the retry budget")
	runCmd.Flags().IntVar(&flagMinEntities, "min-entities", 0, "override the entity target")
	runCmd.Flags().BoolVar(&flagNoBrowser, "no-browser", false, "disable the headless-browser fetch tier")
	runCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "skip SQLite persistence")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(usageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
