package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/mbsbuydown/internal/anomaly"
	"github.com/rewired-gh/mbsbuydown/internal/buydown"
	"github.com/rewired-gh/mbsbuydown/internal/config"
	"github.com/rewired-gh/mbsbuydown/internal/grid"
	"github.com/rewired-gh/mbsbuydown/internal/logger"
	"github.com/rewired-gh/mbsbuydown/internal/models"
	"github.com/rewired-gh/mbsbuydown/internal/nyfed"
	"github.com/rewired-gh/mbsbuydown/internal/pipeline"
	"github.com/rewired-gh/mbsbuydown/internal/storage"
	"github.com/rewired-gh/mbsbuydown/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	dateFlag   = flag.String("date", "", "Trade date YYYY-MM-DD (default: yesterday)")
	quoteMode  = flag.Bool("quote", false, "Print a buydown quote from stored prices instead of ingesting")
	loanFlag   = flag.Float64("loan", 0, "Loan amount for -quote (default: loan.amount from config)")
	origFlag   = flag.Float64("original", 0, "Original rate for -quote, percent")
	downFlag   = flag.Float64("buydown", 0, "Buydown rate for -quote, percent")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	var requested time.Time
	if *dateFlag != "" {
		requested, err = time.ParseInLocation(models.DateLayout, *dateFlag, time.UTC)
		if err != nil {
			log.Fatalf("Invalid -date %q: %v", *dateFlag, err)
		}
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	rateGrid, err := grid.New(cfg.Grid.MinRate, cfg.Grid.MaxRate, cfg.Grid.Step)
	if err != nil {
		logger.Fatal("Invalid rate grid: %v", err)
	}

	feed := nyfed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout)

	var alerter pipeline.Alerter
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		alerter = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	reviewer := anomaly.NewStatReviewer(func(couponRate float64, p models.PricePoint) ([]float64, error) {
		return store.PriceHistory(couponRate, p.Date, 30)
	}, 3.0)

	pipe := pipeline.New(feed, store, alerter, anomaly.New(cfg.Anomaly.Threshold), reviewer, rateGrid, pipeline.Options{
		LoanAmount:     cfg.Loan.Amount,
		TermYears:      cfg.Loan.TermYears,
		Increments:     cfg.Loan.Increments,
		MaxAttempts:    cfg.Feed.MaxAttempts,
		RetentionYears: cfg.Storage.RetentionYears,
	})

	if *quoteMode {
		os.Exit(runQuote(pipe, cfg, requested))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling run...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	status, err := pipe.Run(ctx, requested)
	if err != nil {
		logger.Error("Ingestion finished with status %d: %v", status, err)
	} else {
		logger.Info("Ingestion finished with status %d", status)
	}
	os.Exit(int(status))
}

// runQuote answers a one-shot consumer query against stored prices.
func runQuote(pipe *pipeline.Pipeline, cfg *config.Config, asOf time.Time) int {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	loan := *loanFlag
	if loan == 0 {
		loan = cfg.Loan.Amount
	}

	quote, err := pipe.QuoteBuydown(asOf, buydown.QuoteRequest{
		LoanAmount:   loan,
		OriginalRate: *origFlag,
		BuydownRate:  *downFlag,
		TermYears:    cfg.Loan.TermYears,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "quote failed: %v\n", err)
		return 1
	}

	out, err := json.MarshalIndent(quote, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode quote: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}
