package automationfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

func TestResolveMergesOverridesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automation.yaml")
	content := "communications:\n  sendMessage: fully_auto\nmarketing:\n  publishListing: suggest\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := domain.GetAutomationLevel(cfg, "communications", "sendMessage"); got != domain.AutomationFullyAuto {
		t.Fatalf("override not applied: %s", got)
	}
	if got := domain.GetAutomationLevel(cfg, "communications", "draftMessage"); got != domain.AutomationSuggest {
		t.Fatalf("sibling default lost: %s", got)
	}
	if got := domain.GetAutomationLevel(cfg, "marketing", "publishListing"); got != domain.AutomationSuggest {
		t.Fatalf("new module not added: %s", got)
	}
}

func TestResolveWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := domain.GetAutomationLevel(cfg, "steward", "navigate"); got != domain.AutomationFullyAuto {
		t.Fatalf("expected defaults, got %s", got)
	}
}

func TestDecodeRejectsUnknownLevels(t *testing.T) {
	_, err := Decode(strings.NewReader("leasing:\n  sendLease: whenever\n"))
	if !errors.Is(err, domain.ErrInvalidInput) || !strings.Contains(err.Error(), "leasing.sendLease") {
		t.Fatalf("expected invalid input naming the key, got %v", err)
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil || len(cfg) != 0 {
		t.Fatalf("Decode(empty) = %v, %v", cfg, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
