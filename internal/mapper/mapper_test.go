package mapper

import (
	"errors"
	"strings"
	"testing"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

func testLoader() *types.VolumeLoader {
	return &types.VolumeLoader{
		ID:   "loader-1",
		Name: "orders",
		Type: types.LoaderLocal,
		Mappings: []types.FieldMapping{
			{Source: "order_id", Target: "externalId", Required: true},
			{Source: "type", Target: "workType", Transform: types.TransformUppercase},
			{Source: "prio", Target: "priority", DefaultValue: "5"},
		},
		Defaults: types.LoaderDefaults{
			WorkType: "GENERIC",
			Priority: 3,
		},
	}
}

func TestMapRowBasic(t *testing.T) {
	raw := map[string]string{
		"order_id": "ORD-1001",
		"type":     "orders",
		"prio":     "8",
		"customer": "acme",
	}

	draft, err := MapRow(raw, testLoader())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if draft.ExternalID != "ORD-1001" {
		t.Errorf("expected externalId ORD-1001, got %s", draft.ExternalID)
	}
	if draft.WorkType != "ORDERS" {
		t.Errorf("expected uppercase workType ORDERS, got %s", draft.WorkType)
	}
	if draft.Priority != 8 {
		t.Errorf("expected priority 8, got %d", draft.Priority)
	}
	if draft.Title != "Task ORD-1001" {
		t.Errorf("expected title fallback from externalId, got %q", draft.Title)
	}
	// Unmapped columns land in metadata verbatim.
	if draft.Metadata["customer"] != "acme" {
		t.Errorf("expected unmapped customer column in metadata, got %v", draft.Metadata)
	}
}

func TestMapRowDefaultValue(t *testing.T) {
	raw := map[string]string{"order_id": "ORD-1", "type": "x"}

	draft, err := MapRow(raw, testLoader())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Priority != 5 {
		t.Errorf("expected mapping default 5 for missing prio, got %d", draft.Priority)
	}
}

func TestMapRowRequiredMissingFails(t *testing.T) {
	raw := map[string]string{"type": "orders"}

	_, err := MapRow(raw, testLoader())
	if err == nil {
		t.Fatal("expected mapping error for missing required field")
	}
	var mapErr *MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected *MappingError, got %T", err)
	}
	if mapErr.Field != "order_id" {
		t.Errorf("expected failing field order_id, got %s", mapErr.Field)
	}
}

func TestMapRowLoaderDefaults(t *testing.T) {
	loader := testLoader()
	raw := map[string]string{"order_id": "ORD-2"}

	draft, err := MapRow(raw, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.WorkType != "GENERIC" {
		t.Errorf("expected loader default workType, got %s", draft.WorkType)
	}
}

func TestMapRowTitleTimestampFallback(t *testing.T) {
	loader := &types.VolumeLoader{
		Mappings: []types.FieldMapping{
			{Source: "type", Target: "workType"},
		},
	}

	draft, err := MapRow(map[string]string{"type": "x"}, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(draft.Title, "Task ") {
		t.Errorf("expected timestamp title fallback, got %q", draft.Title)
	}
}

func TestTransforms(t *testing.T) {
	tests := []struct {
		name    string
		mapping types.FieldMapping
		input   string
		want    string
		wantErr bool
	}{
		{"uppercase", types.FieldMapping{Transform: types.TransformUppercase}, "abc", "ABC", false},
		{"lowercase", types.FieldMapping{Transform: types.TransformLowercase}, "ABC", "abc", false},
		{"trim", types.FieldMapping{Transform: types.TransformTrim}, "  x  ", "x", false},
		{"number", types.FieldMapping{Transform: types.TransformNumber}, " 42.50 ", "42.5", false},
		{"number invalid", types.FieldMapping{Transform: types.TransformNumber}, "abc", "", true},
		{"date to ISO8601", types.FieldMapping{Transform: types.TransformDate}, "2026-03-15", "2026-03-15T00:00:00Z", false},
		{"date custom layout", types.FieldMapping{Transform: types.TransformDate, TransformArg: "02-01-2006"}, "15-03-2026", "2026-03-15T00:00:00Z", false},
		{"date invalid", types.FieldMapping{Transform: types.TransformDate}, "not-a-date", "", true},
		{"regex capture group 1", types.FieldMapping{Transform: types.TransformRegexExtract, TransformArg: `ORD-(\d+)`}, "ORD-1234", "1234", false},
		{"regex whole match fallback", types.FieldMapping{Transform: types.TransformRegexExtract, TransformArg: `\d+`}, "abc 567", "567", false},
		{"regex no match", types.FieldMapping{Transform: types.TransformRegexExtract, TransformArg: `\d+`}, "abc", "", true},
		{"template", types.FieldMapping{Transform: types.TransformTemplate, TransformArg: "item-{value}-v1"}, "42", "item-42-v1", false},
		{"lookup hit", types.FieldMapping{Transform: types.TransformLookup, Lookup: map[string]string{"A": "alpha"}}, "A", "alpha", false},
		{"lookup default fallback", types.FieldMapping{Transform: types.TransformLookup, Lookup: map[string]string{"A": "alpha"}, LookupDefault: "other"}, "Z", "other", false},
		{"split", types.FieldMapping{Transform: types.TransformSplit, TransformArg: ";"}, "a; b ;c", "a,b,c", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyTransform(tt.mapping, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuildPayloadURL(t *testing.T) {
	draft := &types.WorkItemDraft{
		Fields: map[string]string{"externalId": "ORD-1"},
		Metadata: map[string]string{
			"customer_name": "ACME & Co",
			"Region":        "EMEA",
		},
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			"mapped field",
			"https://tasks.example/view?id={externalId}",
			"https://tasks.example/view?id=ORD-1",
		},
		{
			"camelCase resolves snake_case metadata",
			"https://tasks.example/c/{customerName}",
			"https://tasks.example/c/ACME+%26+Co",
		},
		{
			"case-insensitive metadata lookup",
			"https://tasks.example/r/{region}",
			"https://tasks.example/r/EMEA",
		},
		{
			"unresolved placeholder is empty",
			"https://tasks.example/x/{missing}/end",
			"https://tasks.example/x//end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPayloadURL(tt.template, draft)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
