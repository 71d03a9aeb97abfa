package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/MeatBorsa/mailflow/internal/batch"
	"github.com/MeatBorsa/mailflow/internal/mailbox"
	"github.com/MeatBorsa/mailflow/internal/oracle"
	"github.com/MeatBorsa/mailflow/internal/report"
)

const (
	defaultModel        = "gpt-4o-mini"
	defaultMaxPerBatch  = 1
	defaultPollInterval = 5 * time.Minute
)

// App wires the mailbox, the extraction oracle and the batch processor.
type App struct {
	cfg       Config
	processor *batch.Processor
	mb        mailbox.Client
}

// New builds the application from configuration. It does not contact any
// external service yet; first contact happens on the first batch run.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultModel
	}
	if cfg.MaxPerBatch == 0 {
		cfg.MaxPerBatch = defaultMaxPerBatch
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var mb mailbox.Client
	switch cfg.MailboxBackend {
	case "imap":
		mb = &mailbox.IMAP{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Folder:   cfg.IMAPFolder,
		}
	default:
		graph := mailbox.NewGraph(ctx, cfg.TenantID, cfg.ClientID, cfg.ClientSecret, cfg.SharedMailbox)
		graph.AnchorMailbox = cfg.AnchorMailbox
		if cfg.ProcessedCategory != "" {
			graph.ProcessedCategory = cfg.ProcessedCategory
		}
		mb = graph
	}

	var limiter *rate.Limiter
	if cfg.OracleRPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.OracleRPM)/60.0), 1)
	}
	analyzer := &oracle.Analyzer{
		Client:  oracle.NewOpenAIProvider(cfg.LLMAPIKey, cfg.LLMBaseURL),
		Model:   cfg.LLMModel,
		Limiter: limiter,
	}

	cleanHTML := true
	if cfg.CleanHTML != nil {
		cleanHTML = *cfg.CleanHTML
	}

	return &App{
		cfg: cfg,
		mb:  mb,
		processor: &batch.Processor{
			Mailbox:         mb,
			Analyzer:        analyzer,
			MaxPerBatch:     cfg.MaxPerBatch,
			ExcludedSenders: cfg.ExcludedSenders,
			CleanHTML:       cleanHTML,
		},
	}, nil
}

// Close releases backend connections.
func (a *App) Close() {
	if closer, ok := a.mb.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("mailbox close failed")
		}
	}
}

// RunOnce executes a single batch and writes the configured artifacts. The
// batch itself never fails; only artifact writing can return an error.
func (a *App) RunOnce(ctx context.Context) (batch.Report, error) {
	rep := a.processor.Run(ctx)
	log.Info().
		Str("run_id", rep.RunID).
		Str("status", rep.Summary.ProcessingStatus).
		Int("total", rep.TotalEmails).
		Int("trading", rep.TradingEmails).
		Int("meat_related", rep.MeatRelatedEmails).
		Msg("batch finished")

	if err := report.WriteJSON(rep, a.cfg.ReportPath); err != nil {
		return rep, err
	}
	if a.cfg.ReportPDFPath != "" {
		if err := report.WritePDF(rep, a.cfg.ReportPDFPath); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// RunLoop runs an initial batch immediately and then one per poll interval
// until the context is cancelled. Batches never overlap: the ticker is only
// consulted after the previous run finished.
func (a *App) RunLoop(ctx context.Context) error {
	log.Info().Dur("interval", a.cfg.PollInterval).Msg("starting periodic processing")
	if _, err := a.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("report write failed")
	}
	if a.cfg.RunOnce {
		return nil
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("report write failed")
			}
		}
	}
}
