package contrib

import "github.com/solusimicro/vibralyzer/internal/types"

// StateBlock is one state's recommendation defaults or fault-specific
// override. Fields left zero-valued fall through to the default block
// during merge (see mergeBlocks), matching original_source's
// recommendation_engine.py shallow-override-with-deep-merged-text rule.
type StateBlock struct {
	Level      string
	Priority   int
	ActionCode string
	Text       map[string]string // language code -> text, "en" is the fallback
}

// Mapping is the full configured table: per-state defaults, plus
// per-fault-type overrides of those defaults.
type Mapping struct {
	Defaults map[types.StateLabel]StateBlock
	Faults   map[string]map[types.StateLabel]StateBlock
}

// DefaultMapping returns a small, sensible built-in table. Real deployments
// are expected to override this via configuration.
func DefaultMapping() Mapping {
	return Mapping{
		Defaults: map[types.StateLabel]StateBlock{
			types.StateNormal: {
				Level: "INFO", Priority: 0, ActionCode: "NO_ACTION",
				Text: map[string]string{"en": "No action required."},
			},
			types.StateWatch: {
				Level: "INFO", Priority: 1, ActionCode: "MONITOR",
				Text: map[string]string{"en": "Continue routine monitoring."},
			},
			types.StateWarning: {
				Level: "WARN", Priority: 2, ActionCode: "SCHEDULE_INSPECTION",
				Text: map[string]string{"en": "Schedule an inspection at the next maintenance window."},
			},
			types.StateAlarm: {
				Level: "CRITICAL", Priority: 3, ActionCode: "IMMEDIATE_INSPECTION",
				Text: map[string]string{"en": "Immediate inspection required."},
			},
		},
		Faults: map[string]map[types.StateLabel]StateBlock{
			"BEARING_DEGRADATION": {
				types.StateAlarm: {
					ActionCode: "REPLACE_BEARING",
					Text:       map[string]string{"en": "Bearing degradation detected; schedule replacement."},
				},
			},
			"IMBALANCE": {
				types.StateWarning: {
					ActionCode: "BALANCE_ROTOR",
					Text:       map[string]string{"en": "Rotor imbalance suspected; schedule dynamic balancing."},
				},
			},
			"MISALIGNMENT": {
				types.StateWarning: {
					ActionCode: "CHECK_ALIGNMENT",
					Text:       map[string]string{"en": "Shaft misalignment suspected; check coupling alignment."},
				},
			},
			"LOOSENESS": {
				types.StateAlarm: {
					ActionCode: "TIGHTEN_MOUNTS",
					Text:       map[string]string{"en": "Mechanical looseness detected; inspect mounting hardware."},
				},
			},
		},
	}
}

// TableRecommender is the built-in Recommender: a pure lookup over a
// configured Mapping with per-state defaults merged with per-fault
// overrides, and language fallback to English.
type TableRecommender struct {
	mapping Mapping
}

// NewTableRecommender creates a TableRecommender over the given mapping.
func NewTableRecommender(mapping Mapping) *TableRecommender {
	return &TableRecommender{mapping: mapping}
}

func (t *TableRecommender) Name() string { return "table" }

func (t *TableRecommender) Recommend(state types.StateLabel, faultType string, confidence, phiValue float64, lang string) Recommendation {
	base := t.mapping.Defaults[state]

	if faultType != "" {
		if byState, ok := t.mapping.Faults[faultType]; ok {
			if override, ok := byState[state]; ok {
				base = mergeBlocks(base, override)
			}
		}
	}

	return Recommendation{
		Level:      base.Level,
		Priority:   base.Priority,
		ActionCode: base.ActionCode,
		Text:       pickLang(base.Text, lang),
	}
}

// mergeBlocks shallow-overrides base with override, except Text which is
// deep-merged key by key — mirrors original_source's _merge().
func mergeBlocks(base, override StateBlock) StateBlock {
	result := base
	if override.Level != "" {
		result.Level = override.Level
	}
	if override.Priority != 0 {
		result.Priority = override.Priority
	}
	if override.ActionCode != "" {
		result.ActionCode = override.ActionCode
	}
	if len(override.Text) > 0 {
		merged := make(map[string]string, len(result.Text)+len(override.Text))
		for k, v := range result.Text {
			merged[k] = v
		}
		for k, v := range override.Text {
			merged[k] = v
		}
		result.Text = merged
	}
	return result
}

// pickLang returns text[lang], falling back to text["en"], falling back to
// empty string — mirrors original_source's _pick_lang().
func pickLang(text map[string]string, lang string) string {
	if text == nil {
		return ""
	}
	if v, ok := text[lang]; ok && v != "" {
		return v
	}
	return text["en"]
}

var _ Recommender = (*TableRecommender)(nil)
