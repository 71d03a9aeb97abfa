package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.MailboxBackend, "MAILBOX_BACKEND")
	setString(&cfg.TenantID, "AZURE_TENANT_ID")
	setString(&cfg.ClientID, "AZURE_CLIENT_ID")
	setString(&cfg.ClientSecret, "AZURE_CLIENT_SECRET")
	setString(&cfg.SharedMailbox, "SHARED_MAILBOX")
	setString(&cfg.AnchorMailbox, "USER_EMAIL")
	setString(&cfg.ProcessedCategory, "EMAIL_PROCESSED_CATEGORY")

	setString(&cfg.IMAPHost, "IMAP_HOST")
	setString(&cfg.IMAPUsername, "IMAP_USERNAME")
	setString(&cfg.IMAPPassword, "IMAP_PASSWORD")
	setString(&cfg.IMAPFolder, "IMAP_FOLDER")
	if cfg.IMAPPort == 0 {
		if n, err := strconv.Atoi(os.Getenv("IMAP_PORT")); err == nil && n > 0 {
			cfg.IMAPPort = n
		}
	}

	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "OPENAI_API_KEY", "LLM_API_KEY")

	if len(cfg.ExcludedSenders) == 0 {
		cfg.ExcludedSenders = splitSenders(os.Getenv("EXCLUDED_SENDERS"))
	}
	if cfg.MaxPerBatch == 0 {
		if n, err := strconv.Atoi(os.Getenv("MAX_EMAILS_PER_BATCH")); err == nil && n > 0 {
			cfg.MaxPerBatch = n
		}
	}
	if cfg.PollInterval == 0 {
		if d, err := time.ParseDuration(os.Getenv("POLLING_INTERVAL")); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if cfg.OracleRPM == 0 {
		if n, err := strconv.Atoi(os.Getenv("ORACLE_RPM")); err == nil && n > 0 {
			cfg.OracleRPM = n
		}
	}

	// CLEAN_HTML defaults to on; only an explicit value changes anything,
	// and flag or config-file settings win over it.
	if cfg.CleanHTML == nil {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("CLEAN_HTML"))) {
		case "false", "0", "no":
			v := false
			cfg.CleanHTML = &v
		case "true", "1", "yes":
			v := true
			cfg.CleanHTML = &v
		}
	}

	setString(&cfg.ReportPath, "REPORT_PATH")
	setString(&cfg.ReportPDFPath, "REPORT_PDF_PATH")
}

// splitSenders parses a comma-separated address list, trimming and
// lowercasing each entry.
func splitSenders(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if addr := strings.ToLower(strings.TrimSpace(p)); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
