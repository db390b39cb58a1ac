// Command generate produces French fill-in-the-blank cards for the
// highest-frequency lemmas in the vocabulary file, calling the Gemini API
// in rate-limited batches. Results are merged into the card store after
// every batch, so an interrupted run resumes where it stopped when re-run.
//
// Flags:
//
//	--count       number of highest-frequency lemmas to target (0 = all)
//	--batch-size  lemmas per API request
//	--dry-run     plan the run without calling the API
//	--gen-config  path to generator config YAML (optional; falls back to env)
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mjoubert/clozecards/internal/adapter/provider/gemini"
	"github.com/mjoubert/clozecards/internal/app"
	"github.com/mjoubert/clozecards/internal/app/generator"
	"github.com/mjoubert/clozecards/internal/cardstore"
	"github.com/mjoubert/clozecards/internal/config"
	"github.com/mjoubert/clozecards/internal/prompt"
	"github.com/mjoubert/clozecards/internal/provider"
	"github.com/mjoubert/clozecards/internal/vocab"
)

// Compile-time interface assertion.
var _ provider.TextGenerator = (*gemini.Provider)(nil)

func main() {
	countFlag := flag.Int("count", 500, "number of highest-frequency lemmas to target (0 = all)")
	batchSizeFlag := flag.Int("batch-size", 20, "lemmas per API request")
	dryRunFlag := flag.Bool("dry-run", false, "plan the run without calling the API")
	genConfigFlag := flag.String("gen-config", "", "path to generator config YAML")
	flag.Parse()

	// Load app config (logging, file paths, API key).
	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger := app.NewLogger(appCfg.Log)
	logger.Info("starting generate", slog.String("version", app.BuildVersion()))

	if appCfg.LLM.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: Set GEMINI_API_KEY in .env or as an environment variable.")
		fmt.Fprintln(os.Stderr, "  1. Copy .env.example to .env")
		fmt.Fprintln(os.Stderr, "  2. Add your key from https://aistudio.google.com/apikey")
		os.Exit(1)
	}

	// Load generator config.
	genCfg, err := generator.LoadConfig(*genConfigFlag)
	if err != nil {
		logger.Error("load generator config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// CLI flags override config, but only when set explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "count":
			genCfg.Count = *countFlag
		case "batch-size":
			genCfg.BatchSize = *batchSizeFlag
		case "dry-run":
			genCfg.DryRun = *dryRunFlag
		}
	})

	if err := genCfg.Validate(); err != nil {
		logger.Error("generator config invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lemmas, err := vocab.Parse(appCfg.Paths.Vocab)
	if err != nil {
		logger.Error("read vocabulary", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("vocabulary loaded",
		slog.String("path", appCfg.Paths.Vocab),
		slog.Int("lemmas", len(lemmas)),
	)

	tmpl, err := prompt.Load(appCfg.Paths.Template)
	if err != nil {
		logger.Error("load prompt template", slog.String("error", err.Error()))
		os.Exit(1)
	}

	gen, err := gemini.New(ctx, appCfg.LLM.APIKey, appCfg.LLM.Model, logger)
	if err != nil {
		logger.Error("create gemini client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := cardstore.New(appCfg.Paths.Output, logger)

	runner := generator.NewRunner(logger, gen, tmpl, store, *genCfg)
	res, err := runner.Run(ctx, lemmas)
	if err != nil {
		logger.Error("generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	printSummary(res, appCfg.Paths.Output)
}

// printSummary reports the run outcome to the user on stdout.
func printSummary(res *generator.Result, outputPath string) {
	fmt.Println(strings.Repeat("=", 50))
	if res.Skipped > 0 {
		fmt.Printf("Dry run: %d lemmas would be generated.\n", res.Skipped)
		return
	}
	fmt.Printf("Done! Generated cards for %d new lemmas.\n", res.Generated)
	fmt.Printf("Total in %s: %d lemmas.\n", outputPath, res.Total)
	if len(res.Failed) > 0 {
		fmt.Printf("\n%d lemmas failed (re-run to retry):\n", len(res.Failed))
		fmt.Printf("  %s\n", truncateList(res.Failed, 20))
	}
}

// truncateList joins items with commas, eliding everything past max.
func truncateList(items []string, max int) string {
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:max], ", ") + "..."
}
