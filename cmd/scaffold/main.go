// Command scaffold writes a card store of placeholder cards for every lemma
// in the vocabulary file. The placeholders mirror the shape of generated
// cards, so the deck UI can be exercised before any API quota is spent.
// The output file is overwritten in full on every run.
//
// Flags:
//
//	--out  output path for the placeholder store
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mjoubert/clozecards/internal/app"
	"github.com/mjoubert/clozecards/internal/app/scaffold"
	"github.com/mjoubert/clozecards/internal/cardstore"
	"github.com/mjoubert/clozecards/internal/config"
	"github.com/mjoubert/clozecards/internal/vocab"
)

func main() {
	outFlag := flag.String("out", "public/cards.json", "output path for the placeholder store")
	flag.Parse()

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger := app.NewLogger(appCfg.Log)

	lemmas, err := vocab.Parse(appCfg.Paths.Vocab)
	if err != nil {
		logger.Error("read vocabulary", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("vocabulary loaded",
		slog.String("path", appCfg.Paths.Vocab),
		slog.Int("lemmas", len(lemmas)),
	)

	cards := scaffold.Build(lemmas)

	if err := os.MkdirAll(filepath.Dir(*outFlag), 0o755); err != nil {
		logger.Error("create output directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store := cardstore.New(*outFlag, logger)
	if err := store.Save(cards); err != nil {
		logger.Error("write placeholder store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("placeholder store written",
		slog.String("path", *outFlag),
		slog.Int("lemmas", len(cards)),
	)
}
