package contrib_test

import (
	"testing"

	"github.com/solusimicro/vibralyzer/contrib"
	"github.com/solusimicro/vibralyzer/internal/types"
)

func TestRecommend_DefaultsWhenNoFaultType(t *testing.T) {
	r := contrib.NewTableRecommender(contrib.DefaultMapping())
	got := r.Recommend(types.StateWarning, "", 0, 0, "en")
	if got.ActionCode != "SCHEDULE_INSPECTION" {
		t.Fatalf("expected default WARNING action, got %q", got.ActionCode)
	}
}

func TestRecommend_FaultOverrideWins(t *testing.T) {
	r := contrib.NewTableRecommender(contrib.DefaultMapping())
	got := r.Recommend(types.StateAlarm, "BEARING_DEGRADATION", 0.9, 12.0, "en")
	if got.ActionCode != "REPLACE_BEARING" {
		t.Fatalf("expected BEARING_DEGRADATION override, got %q", got.ActionCode)
	}
	// Priority isn't overridden for this fault/state pair, so it should
	// fall through from the state default.
	if got.Priority != 3 {
		t.Fatalf("expected priority to fall through from default, got %d", got.Priority)
	}
}

func TestRecommend_FaultOverrideOnlyAppliesToItsState(t *testing.T) {
	r := contrib.NewTableRecommender(contrib.DefaultMapping())
	// BEARING_DEGRADATION only overrides ALARM; at WARNING it should fall
	// back to the plain state default.
	got := r.Recommend(types.StateWarning, "BEARING_DEGRADATION", 0, 0, "en")
	if got.ActionCode != "SCHEDULE_INSPECTION" {
		t.Fatalf("expected default WARNING action for unmatched state, got %q", got.ActionCode)
	}
}

func TestRecommend_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	r := contrib.NewTableRecommender(contrib.DefaultMapping())
	got := r.Recommend(types.StateNormal, "", 0, 0, "fr")
	if got.Text != "No action required." {
		t.Fatalf("expected English fallback text, got %q", got.Text)
	}
}

func TestRecommend_UsesRequestedLanguageWhenPresent(t *testing.T) {
	mapping := contrib.DefaultMapping()
	block := mapping.Defaults[types.StateNormal]
	block.Text = map[string]string{"en": "No action required.", "fr": "Aucune action requise."}
	mapping.Defaults[types.StateNormal] = block

	r := contrib.NewTableRecommender(mapping)
	got := r.Recommend(types.StateNormal, "", 0, 0, "fr")
	if got.Text != "Aucune action requise." {
		t.Fatalf("expected French text, got %q", got.Text)
	}
}

func TestGetRecommender_DefaultTableIsRegistered(t *testing.T) {
	r, err := contrib.GetRecommender("table")
	if err != nil {
		t.Fatalf("expected default table recommender to be registered: %v", err)
	}
	if r.Name() != "table" {
		t.Fatalf("expected name 'table', got %q", r.Name())
	}
}

func TestGetRecommender_UnknownNameErrors(t *testing.T) {
	if _, err := contrib.GetRecommender("does-not-exist"); err == nil {
		t.Fatal("expected error for unregistered recommender name")
	}
}
