package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema. Nested
// sections map naturally to flags and env.
type FileConfig struct {
	Mailbox struct {
		Backend           string `yaml:"backend" json:"backend"`
		TenantID          string `yaml:"tenantId" json:"tenantId"`
		ClientID          string `yaml:"clientId" json:"clientId"`
		ClientSecret      string `yaml:"clientSecret" json:"clientSecret"`
		SharedMailbox     string `yaml:"sharedMailbox" json:"sharedMailbox"`
		AnchorMailbox     string `yaml:"anchorMailbox" json:"anchorMailbox"`
		ProcessedCategory string `yaml:"processedCategory" json:"processedCategory"`

		IMAPHost     string `yaml:"imapHost" json:"imapHost"`
		IMAPPort     int    `yaml:"imapPort" json:"imapPort"`
		IMAPUsername string `yaml:"imapUsername" json:"imapUsername"`
		IMAPPassword string `yaml:"imapPassword" json:"imapPassword"`
		IMAPFolder   string `yaml:"imapFolder" json:"imapFolder"`
	} `yaml:"mailbox" json:"mailbox"`

	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`
		RPM     int    `yaml:"rpm" json:"rpm"`
	} `yaml:"llm" json:"llm"`

	Batch struct {
		MaxPerBatch     int      `yaml:"maxPerBatch" json:"maxPerBatch"`
		ExcludedSenders []string `yaml:"excludedSenders" json:"excludedSenders"`
		CleanHTML       *bool    `yaml:"cleanHTML" json:"cleanHTML"`
		// PollInterval is a Go duration string such as "5m".
		PollInterval string `yaml:"pollInterval" json:"pollInterval"`
	} `yaml:"batch" json:"batch"`

	Report struct {
		JSON string `yaml:"json" json:"json"`
		PDF  string `yaml:"pdf" json:"pdf"`
	} `yaml:"report" json:"report"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields
// that are currently unset/zero in cfg, so flags and env keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.MailboxBackend == "" && fc.Mailbox.Backend != "" {
		cfg.MailboxBackend = fc.Mailbox.Backend
	}
	if cfg.TenantID == "" {
		cfg.TenantID = fc.Mailbox.TenantID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fc.Mailbox.ClientID
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = fc.Mailbox.ClientSecret
	}
	if cfg.SharedMailbox == "" {
		cfg.SharedMailbox = fc.Mailbox.SharedMailbox
	}
	if cfg.AnchorMailbox == "" {
		cfg.AnchorMailbox = fc.Mailbox.AnchorMailbox
	}
	if cfg.ProcessedCategory == "" {
		cfg.ProcessedCategory = fc.Mailbox.ProcessedCategory
	}
	if cfg.IMAPHost == "" {
		cfg.IMAPHost = fc.Mailbox.IMAPHost
	}
	if cfg.IMAPPort == 0 {
		cfg.IMAPPort = fc.Mailbox.IMAPPort
	}
	if cfg.IMAPUsername == "" {
		cfg.IMAPUsername = fc.Mailbox.IMAPUsername
	}
	if cfg.IMAPPassword == "" {
		cfg.IMAPPassword = fc.Mailbox.IMAPPassword
	}
	if cfg.IMAPFolder == "" {
		cfg.IMAPFolder = fc.Mailbox.IMAPFolder
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.OracleRPM == 0 && fc.LLM.RPM > 0 {
		cfg.OracleRPM = fc.LLM.RPM
	}

	if cfg.MaxPerBatch == 0 && fc.Batch.MaxPerBatch > 0 {
		cfg.MaxPerBatch = fc.Batch.MaxPerBatch
	}
	if len(cfg.ExcludedSenders) == 0 && len(fc.Batch.ExcludedSenders) > 0 {
		cfg.ExcludedSenders = splitSenders(strings.Join(fc.Batch.ExcludedSenders, ","))
	}
	if cfg.CleanHTML == nil && fc.Batch.CleanHTML != nil {
		cfg.CleanHTML = fc.Batch.CleanHTML
	}
	if cfg.PollInterval == 0 && fc.Batch.PollInterval != "" {
		if d, err := time.ParseDuration(fc.Batch.PollInterval); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}

	if cfg.ReportPath == "" {
		cfg.ReportPath = fc.Report.JSON
	}
	if cfg.ReportPDFPath == "" {
		cfg.ReportPDFPath = fc.Report.PDF
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	switch cfg.MailboxBackend {
	case "graph":
		if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return errors.New("config: graph backend requires tenant id, client id and client secret")
		}
		if cfg.SharedMailbox == "" {
			return errors.New("config: shared mailbox address is required")
		}
	case "imap":
		if cfg.IMAPHost == "" || cfg.IMAPUsername == "" {
			return errors.New("config: imap backend requires host and username")
		}
	default:
		return fmt.Errorf("config: unknown mailbox backend %q", cfg.MailboxBackend)
	}
	if strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required (or set LLM_MODEL)")
	}
	if cfg.MaxPerBatch < 0 || cfg.OracleRPM < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
