// Package automationfile loads per-deployment automation overrides from YAML:
//
//	communications:
//	  sendMessage: suggest
//	maintenance:
//	  assignVendor: auto_with_review
package automationfile

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

// Load reads overrides from path. An empty path yields no overrides.
func Load(path string) (domain.AutomationConfig, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open automation config: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

func Decode(r io.Reader) (domain.AutomationConfig, error) {
	var raw map[string]map[string]string
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		if err == io.EOF {
			return domain.AutomationConfig{}, nil
		}
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode automation config", err)
	}

	out := make(domain.AutomationConfig, len(raw))
	var invalid []string
	for module, actions := range raw {
		levels := make(map[string]domain.AutomationLevel, len(actions))
		for actionType, value := range actions {
			level, ok := domain.ParseAutomationLevel(value)
			if !ok {
				invalid = append(invalid, fmt.Sprintf("%s.%s=%q", module, actionType, value))
				continue
			}
			levels[actionType] = level
		}
		out[module] = levels
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode automation config",
			fmt.Errorf("unknown automation levels: %s", strings.Join(invalid, ", ")))
	}
	return out, nil
}

// Resolve merges the overrides at path over the built-in defaults.
func Resolve(path string) (domain.AutomationConfig, error) {
	overrides, err := Load(path)
	if err != nil {
		return nil, err
	}
	return domain.MergeAutomationConfig(domain.DefaultAutomationConfig(), overrides), nil
}
