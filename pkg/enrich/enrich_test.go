package enrich

import (
	"testing"
)

func TestParsePatch(t *testing.T) {
	patch, err := parsePatch(`{"description":"List widgets.","param_descriptions":{"limit":"Max results."}}`)
	if err != nil {
		t.Fatalf("parsePatch: %v", err)
	}
	if patch.Description != "List widgets." {
		t.Errorf("description = %q", patch.Description)
	}
	if patch.ParamDescriptions["limit"] != "Max results." {
		t.Errorf("param_descriptions = %v", patch.ParamDescriptions)
	}
}

func TestParsePatchFencedBlock(t *testing.T) {
	patch, err := parsePatch("```json\n{\"description\":\"Fenced.\"}\n```")
	if err != nil {
		t.Fatalf("parsePatch: %v", err)
	}
	if patch.Description != "Fenced." {
		t.Errorf("description = %q", patch.Description)
	}
}

func TestParsePatchRejectsProse(t *testing.T) {
	if _, err := parsePatch("Sure! Here is the documentation you asked for."); err == nil {
		t.Error("expected error for non-JSON reply")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing API key")
	}
}
