package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/morvant/deckard/internal/config"
	"github.com/morvant/deckard/internal/content"
	"github.com/morvant/deckard/internal/domain"
	"github.com/morvant/deckard/internal/review"
	"github.com/morvant/deckard/internal/scheduler"
	"github.com/morvant/deckard/internal/session"
	"github.com/morvant/deckard/internal/storage"
	"github.com/morvant/deckard/internal/syncer"
)

func main() {
	// 1. Define and parse command-line flags. Names mirror config keys
	// so they layer through the config loader.
	flags := pflag.NewFlagSet("deckard", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to a YAML config file")
	deckID := flags.Int64("deck", 0, "Deck ID to study")
	addDeck := flags.Bool("add-deck", false, "Register a deck instead of studying")
	deckName := flags.String("deck-name", "", "Deck name (with --add-deck)")
	deckCID := flags.String("deck-cid", "", "Content CID of the deck payload (with --add-deck)")
	deckRepo := flags.String("deck-repo", "", "Git repository holding the deck payload (with --add-deck)")
	showStats := flags.Bool("stats", false, "Show deck statistics instead of studying")

	def := config.Default()
	flags.String("database_path", def.DatabasePath, "Path to the SQLite database file")
	flags.String("gateway_url", def.GatewayURL, "Base URL of the content gateway")
	flags.String("repos_dir", def.ReposDir, "Directory for git-hosted deck checkouts")
	flags.String("sync_endpoint", def.SyncEndpoint, "Remote progress backup endpoint")
	flags.String("sync_token", def.SyncToken, "Bearer token for the backup endpoint")
	flags.Int("new_cards_per_day", def.NewCardsPerDay, "Daily new-card allowance per deck")
	flags.String("log_level", def.LogLevel, "Log level: debug, info, warn or error")

	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	// 2. Open the database
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	logger.Debug("database opened", "path", cfg.DatabasePath)

	if *addDeck {
		if err := registerDeck(db, *deckID, *deckName, *deckCID, *deckRepo); err != nil {
			log.Fatalf("Failed to add deck: %v", err)
		}
		fmt.Printf("Deck %d registered.\n", *deckID)
		return
	}

	if *deckID == 0 {
		log.Fatalf("A deck is required: pass --deck <id>")
	}

	// 3. Wire the engine
	contentSvc := content.NewService(db, cfg.GatewayURL, cfg.ReposDir, cfg.NewCardsPerDay, logger)
	updater := review.NewUpdater(db, cfg.NewCardsPerDay, logger)
	syncClient := syncer.New(cfg.SyncEndpoint, cfg.SyncToken, logger)
	controller := session.NewController(contentSvc, db, updater, syncClient, cfg.NewCardsPerDay, logger)

	ctx := context.Background()

	if *showStats {
		if err := printDeckStats(db, *deckID, cfg.NewCardsPerDay); err != nil {
			log.Fatalf("Failed to compute deck stats: %v", err)
		}
		return
	}

	if err := runStudy(ctx, controller, *deckID); err != nil {
		log.Fatalf("Study session failed: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func registerDeck(db *storage.DB, id int64, name, cid, repo string) error {
	if id == 0 || name == "" {
		return fmt.Errorf("--deck and --deck-name are required")
	}
	if cid == "" && repo == "" {
		return fmt.Errorf("one of --deck-cid or --deck-repo is required")
	}
	return db.UpsertDeck(domain.Deck{
		ID:            id,
		Name:          name,
		FlashcardsCID: cid,
		ContentRepo:   repo,
	})
}

func printDeckStats(db *storage.DB, deckID int64, quota int) error {
	cards, err := db.GetDeckFlashcards(deckID)
	if err != nil {
		return err
	}
	records, err := db.GetDeckProgress(deckID)
	if err != nil {
		return err
	}
	now := time.Now()
	log, err := db.GetStudyLog(domain.StudyDate(now), deckID)
	if err != nil {
		return err
	}
	if log == nil {
		fresh := domain.NewDailyStudyLog(domain.StudyDate(now), deckID, quota)
		log = &fresh
	}

	stats := scheduler.Stats(deckID, cards, scheduler.ProgressByCard(deckID, records), *log, now)
	fmt.Printf("Deck %d: %d new, %d due, %d scheduled, %d studied today (%d new remaining)\n",
		deckID, stats.New, stats.Due, stats.Scheduled, stats.StudiedToday, stats.NewRemaining)
	return nil
}

// runStudy drives an interactive terminal session: Enter flips the
// card, then 'g' (good) or 'a' (again) answers it.
func runStudy(ctx context.Context, controller *session.Controller, deckID int64) error {
	if err := controller.StartStudySession(ctx, deckID); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for controller.State() == session.StateActive || controller.State() == session.StateAgainPass {
		card, err := controller.CurrentCard()
		if err != nil {
			return err
		}

		fmt.Printf("\n[%d left] %s\n", controller.Remaining(), card.FrontText)
		fmt.Print("Press Enter to flip...")
		if _, err := reader.ReadString('\n'); err != nil {
			return err
		}
		if err := controller.Flip(); err != nil {
			return err
		}
		fmt.Printf("%s\n", card.BackText)
		if card.Notes != "" {
			fmt.Printf("  (%s)\n", card.Notes)
		}

		answer, err := readAnswer(reader)
		if err != nil {
			return err
		}
		if err := controller.Answer(answer); err != nil {
			return err
		}
	}

	stats := controller.Stats()
	fmt.Printf("\nSession complete: %d cards, %d good, %d again.\n", stats.Total, stats.Correct, stats.Again)

	if err := controller.CompleteSession(ctx); err != nil {
		return fmt.Errorf("progress is saved locally, but syncing failed: %w", err)
	}
	return nil
}

func readAnswer(reader *bufio.Reader) (domain.Answer, error) {
	for {
		fmt.Print("[g]ood / [a]gain? ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "g", "good":
			return domain.AnswerGood, nil
		case "a", "again":
			return domain.AnswerAgain, nil
		}
	}
}
