package domain

import "strings"

// AutomationLevel is the autonomy granted to an action type. Levels are
// ordered: manual < suggest < auto_with_review < fully_auto.
type AutomationLevel string

const (
	AutomationManual         AutomationLevel = "manual"
	AutomationSuggest        AutomationLevel = "suggest"
	AutomationAutoWithReview AutomationLevel = "auto_with_review"
	AutomationFullyAuto      AutomationLevel = "fully_auto"
)

// AutomationConfig maps module -> action type -> level.
type AutomationConfig map[string]map[string]AutomationLevel

const (
	ModuleSteward        = "steward"
	ModuleCommunications = "communications"
	ModuleMaintenance    = "maintenance"
	ModuleLeasing        = "leasing"
	ModuleAccounting     = "accounting"
)

func ParseAutomationLevel(raw string) (AutomationLevel, bool) {
	level := AutomationLevel(strings.ToLower(strings.TrimSpace(raw)))
	switch level {
	case AutomationManual, AutomationSuggest, AutomationAutoWithReview, AutomationFullyAuto:
		return level, true
	default:
		return AutomationManual, false
	}
}

func (l AutomationLevel) Valid() bool {
	switch l {
	case AutomationManual, AutomationSuggest, AutomationAutoWithReview, AutomationFullyAuto:
		return true
	default:
		return false
	}
}

// Rank orders levels by autonomy. Unknown levels rank as manual.
func (l AutomationLevel) Rank() int {
	switch l {
	case AutomationSuggest:
		return 1
	case AutomationAutoWithReview:
		return 2
	case AutomationFullyAuto:
		return 3
	default:
		return 0
	}
}

// RequiresApproval is the exact complement of CanAutoExecute.
func (l AutomationLevel) RequiresApproval() bool {
	return l.Rank() <= AutomationSuggest.Rank()
}

func (l AutomationLevel) CanAutoExecute() bool {
	return !l.RequiresApproval()
}

func (l AutomationLevel) ShouldShowForReview() bool {
	return l.Rank() != AutomationFullyAuto.Rank()
}

// GetAutomationLevel fails closed: anything not explicitly configured with a
// known level resolves to manual.
func GetAutomationLevel(cfg AutomationConfig, module, actionType string) AutomationLevel {
	actions, ok := cfg[module]
	if !ok {
		return AutomationManual
	}
	level, ok := actions[actionType]
	if !ok || !level.Valid() {
		return AutomationManual
	}
	return level
}

// MergeAutomationConfig overlays overrides onto defaults module by module.
// Action types not named by an override keep their default. Inputs are not
// mutated.
func MergeAutomationConfig(defaults, overrides AutomationConfig) AutomationConfig {
	out := make(AutomationConfig, len(defaults)+len(overrides))
	for module, actions := range defaults {
		out[module] = copyActions(actions)
	}
	for module, actions := range overrides {
		merged, ok := out[module]
		if !ok {
			merged = make(map[string]AutomationLevel, len(actions))
			out[module] = merged
		}
		for actionType, level := range actions {
			merged[actionType] = level
		}
	}
	return out
}

func copyActions(actions map[string]AutomationLevel) map[string]AutomationLevel {
	out := make(map[string]AutomationLevel, len(actions))
	for actionType, level := range actions {
		out[actionType] = level
	}
	return out
}

func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		ModuleSteward: {
			"chat":     AutomationSuggest,
			"navigate": AutomationFullyAuto,
		},
		ModuleCommunications: {
			"draftMessage":   AutomationSuggest,
			"sendMessage":    AutomationManual,
			"autoResponse":   AutomationManual,
			"bulkAnnounce":   AutomationManual,
			"translateReply": AutomationAutoWithReview,
		},
		ModuleMaintenance: {
			"triageRequest":   AutomationAutoWithReview,
			"assignVendor":    AutomationSuggest,
			"scheduleVisit":   AutomationSuggest,
			"approveEstimate": AutomationManual,
		},
		ModuleLeasing: {
			"screenApplication": AutomationSuggest,
			"draftLease":        AutomationSuggest,
			"sendLease":         AutomationManual,
			"renewalOffer":      AutomationManual,
		},
		ModuleAccounting: {
			"categorizeTransaction": AutomationAutoWithReview,
			"sendReminder":          AutomationSuggest,
			"applyLateFee":          AutomationManual,
			"reconcile":             AutomationSuggest,
		},
	}
}
