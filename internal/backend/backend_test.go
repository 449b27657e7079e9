package backend

import (
	"context"
	"strings"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{
		MirrorBackend:                "sheets",
		GoogleSpreadsheetID:          "sheet-1",
		GoogleSheetName:              "Records",
		GoogleApplicationCredentials: "/etc/creds.json",
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cfg.Type != SheetsMirror || cfg.Sheets.SpreadsheetID != "sheet-1" || cfg.Sheets.CredentialsFile != "/etc/creds.json" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{MirrorBackend: "excel"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryMirror}, ""},
		{"sheets without id", Config{Type: SheetsMirror}, "Spreadsheet ID"},
		{"sheets without credentials", func() Config {
			c := Config{Type: SheetsMirror}
			c.Sheets.SpreadsheetID = "sheet-1"
			return c
		}(), "credentials"},
		{"unknown", Config{Type: "excel"}, "invalid mirror backend"},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: expected error containing %q, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestNewMirrorMemory(t *testing.T) {
	m, err := NewMirror(context.Background(), Config{Type: MemoryMirror})
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}
	if _, ok := m.(*memory.Mirror); !ok {
		t.Fatalf("expected memory mirror, got %T", m)
	}
}
