package mapper

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// MappingError is a per-row mapping failure. Callers record it in the run's
// error log; it never aborts the rest of a batch.
type MappingError struct {
	Field   string
	Message string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// MapRow converts one raw parsed row into a work-item draft using the
// loader's field mappings. A missing value falls back to the mapping's
// default; a required mapping with no value at all fails the row. Unmapped
// source columns are copied into the draft's metadata verbatim so payload
// URL templates can reference any source column.
func MapRow(raw map[string]string, loader *types.VolumeLoader) (types.WorkItemDraft, error) {
	draft := types.WorkItemDraft{
		Fields:   make(map[string]string),
		Metadata: make(map[string]string),
	}

	mappedSources := make(map[string]bool, len(loader.Mappings))
	for _, m := range loader.Mappings {
		mappedSources[m.Source] = true

		value, ok := raw[m.Source]
		if !ok || value == "" {
			value = m.DefaultValue
		}
		if value == "" {
			if m.Required {
				return draft, &MappingError{
					Field:   m.Source,
					Message: "required field has no value and no default",
				}
			}
			continue
		}

		transformed, err := applyTransform(m, value)
		if err != nil {
			if m.Required {
				return draft, &MappingError{Field: m.Source, Message: err.Error()}
			}
			// Optional field with a failing transform keeps the raw value.
			transformed = value
		}
		draft.Fields[m.Target] = transformed
	}

	for source, value := range raw {
		if !mappedSources[source] {
			draft.Metadata[source] = value
		}
	}

	applyWellKnownFields(&draft)
	applyDefaults(&draft, loader)

	return draft, nil
}

// applyWellKnownFields lifts standard draft fields out of the mapped set
func applyWellKnownFields(draft *types.WorkItemDraft) {
	if v, ok := draft.Fields["externalId"]; ok {
		draft.ExternalID = v
	}
	if v, ok := draft.Fields["title"]; ok {
		draft.Title = v
	}
	if v, ok := draft.Fields["workType"]; ok {
		draft.WorkType = v
	}
	if v, ok := draft.Fields["priority"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			draft.Priority = n
		}
	}
}

// applyDefaults fills draft fields the mappings left empty
func applyDefaults(draft *types.WorkItemDraft, loader *types.VolumeLoader) {
	if draft.WorkType == "" {
		draft.WorkType = loader.Defaults.WorkType
	}
	if draft.Priority == 0 {
		draft.Priority = loader.Defaults.Priority
	}
	if draft.Title == "" {
		if draft.ExternalID != "" {
			draft.Title = "Task " + draft.ExternalID
		} else {
			draft.Title = "Task " + time.Now().Format("20060102-150405.000")
		}
	}
	if loader.Defaults.PayloadURLTemplate != "" {
		draft.PayloadURL = BuildPayloadURL(loader.Defaults.PayloadURLTemplate, draft)
	}
}
