package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MeatBorsa/mailflow/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath      string
		backend         string
		tenantID        string
		clientID        string
		clientSecret    string
		sharedMailbox   string
		anchorMailbox   string
		processedTag    string
		imapHost        string
		imapPort        int
		imapUsername    string
		imapPassword    string
		imapFolder      string
		llmBaseURL      string
		llmModel        string
		llmKey          string
		oracleRPM       int
		maxPerBatch     int
		excludedSenders string
		keepHTML        bool
		pollInterval    time.Duration
		runOnce         bool
		reportPath      string
		reportPDFPath   string
		verbose         bool
	)

	flag.StringVar(&configPath, "config", "", "Path to optional YAML/JSON config file")
	flag.StringVar(&backend, "mailbox.backend", "", "Mailbox backend: graph or imap")
	flag.StringVar(&tenantID, "graph.tenant", "", "Azure tenant id")
	flag.StringVar(&clientID, "graph.client", "", "Azure client id")
	flag.StringVar(&clientSecret, "graph.secret", "", "Azure client secret")
	flag.StringVar(&sharedMailbox, "graph.mailbox", "", "Shared mailbox address to monitor")
	flag.StringVar(&anchorMailbox, "graph.anchor", "", "X-AnchorMailbox routing hint")
	flag.StringVar(&processedTag, "graph.processedCategory", "", "Category used as the processed marker")
	flag.StringVar(&imapHost, "imap.host", "", "IMAP server host")
	flag.IntVar(&imapPort, "imap.port", 993, "IMAP server port")
	flag.StringVar(&imapUsername, "imap.user", "", "IMAP username")
	flag.StringVar(&imapPassword, "imap.pass", "", "IMAP password")
	flag.StringVar(&imapFolder, "imap.folder", "", "IMAP folder to poll (default INBOX)")
	flag.StringVar(&llmBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", "", "Model name")
	flag.StringVar(&llmKey, "llm.key", "", "API key for the extraction service")
	flag.IntVar(&oracleRPM, "llm.rpm", 0, "Max extraction calls per minute (0 disables the limiter)")
	flag.IntVar(&maxPerBatch, "batch.max", 0, "Max emails per batch")
	flag.StringVar(&excludedSenders, "batch.excludedSenders", "", "Comma-separated sender addresses to skip")
	flag.BoolVar(&keepHTML, "batch.keepHTML", false, "Pass HTML bodies to the oracle without normalization")
	flag.DurationVar(&pollInterval, "poll.interval", 0, "Polling interval (e.g. 5m)")
	flag.BoolVar(&runOnce, "once", false, "Run a single batch and exit")
	flag.StringVar(&reportPath, "report.json", "", "Path for the JSON batch report; '-' for stdout")
	flag.StringVar(&reportPDFPath, "report.pdf", "", "Optional path for a PDF batch summary")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	cfg := app.Config{
		MailboxBackend:    backend,
		TenantID:          tenantID,
		ClientID:          clientID,
		ClientSecret:      clientSecret,
		SharedMailbox:     sharedMailbox,
		AnchorMailbox:     anchorMailbox,
		ProcessedCategory: processedTag,
		IMAPHost:          imapHost,
		IMAPPort:          imapPort,
		IMAPUsername:      imapUsername,
		IMAPPassword:      imapPassword,
		IMAPFolder:        imapFolder,
		LLMBaseURL:        llmBaseURL,
		LLMModel:          llmModel,
		LLMAPIKey:         llmKey,
		OracleRPM:         oracleRPM,
		MaxPerBatch:       maxPerBatch,
		PollInterval:      pollInterval,
		RunOnce:           runOnce,
		ReportPath:        reportPath,
		ReportPDFPath:     reportPDFPath,
		Verbose:           verbose,
	}
	// Track whether -batch.keepHTML was actually passed, so the config file
	// and env only apply when the flag is absent.
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "batch.keepHTML" {
			v := !keepHTML
			cfg.CleanHTML = &v
		}
	})
	if s := strings.TrimSpace(excludedSenders); s != "" {
		for _, part := range strings.Split(s, ",") {
			if addr := strings.ToLower(strings.TrimSpace(part)); addr != "" {
				cfg.ExcludedSenders = append(cfg.ExcludedSenders, addr)
			}
		}
	}

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("cannot load config file")
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)
	if cfg.MailboxBackend == "" {
		cfg.MailboxBackend = "graph"
	}

	if verbose || cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	log.Info().Str("backend", cfg.MailboxBackend).Msg("starting email processor")
	if err := a.RunLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("processor stopped")
	}
}
