// Package backend selects the spreadsheet mirror the sync worker writes to.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/config"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
)

// MirrorType names a mirror implementation.
type MirrorType string

const (
	SheetsMirror MirrorType = "sheets"
	MemoryMirror MirrorType = "memory"
)

func (t MirrorType) IsValid() bool {
	return t == SheetsMirror || t == MemoryMirror
}

func (t MirrorType) String() string {
	return string(t)
}

// Config holds what is needed to build a mirror.
type Config struct {
	Type   MirrorType
	Sheets gsheet.Config
}

// FromAppConfig converts the application config to a mirror config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := MirrorType(appConfig.MirrorBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid mirror backend in config: %s", appConfig.MirrorBackend)
	}
	return Config{
		Type: t,
		Sheets: gsheet.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.ServiceAccountFile(),
		},
	}, nil
}

// Validate checks the settings the chosen mirror needs.
func (c Config) Validate() error {
	switch c.Type {
	case SheetsMirror:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for the sheets mirror")
		}
		if c.Sheets.CredentialsJSON == "" && c.Sheets.CredentialsFile == "" {
			return fmt.Errorf("service account credentials are required for the sheets mirror")
		}
	case MemoryMirror:
	default:
		return fmt.Errorf("invalid mirror backend: %s", c.Type)
	}
	return nil
}

// NewMirror builds the configured mirror. The sheets mirror has its header
// row written before it is returned.
func NewMirror(ctx context.Context, cfg Config) (sheets.RecordMirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case SheetsMirror:
		client, err := gsheet.New(ctx, cfg.Sheets)
		if err != nil {
			return nil, fmt.Errorf("create sheets mirror: %w", err)
		}
		if err := client.EnsureHeader(ctx); err != nil {
			return nil, fmt.Errorf("write sheet header: %w", err)
		}
		slog.InfoContext(ctx, "Initialized Google Sheets mirror", "sheet", cfg.Sheets.SheetName)
		return client, nil
	default:
		slog.InfoContext(ctx, "Initialized memory mirror")
		return memory.New(), nil
	}
}
