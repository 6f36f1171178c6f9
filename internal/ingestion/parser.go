package ingestion

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// ParseRows decodes an uploaded file into raw string rows. CSV and JSON
// are supported; the format is taken from the file extension, falling back
// to content sniffing for extensionless uploads.
func ParseRows(fileName string, data []byte, opts types.ProcessingOptions) ([]map[string]string, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(fileName), ".csv"):
		return parseCSV(data, opts)
	case strings.HasSuffix(strings.ToLower(fileName), ".json"):
		return parseJSON(data, opts)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return parseJSON(data, opts)
	}
	return parseCSV(data, opts)
}

// parseCSV reads a header row plus data rows. The delimiter is configurable
// per loader; the default is a comma.
func parseCSV(data []byte, opts types.ProcessingOptions) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	if opts.CSVDelimiter != "" {
		runes := []rune(opts.CSVDelimiter)
		if len(runes) != 1 {
			return nil, types.NewValidation(fmt.Sprintf("csv delimiter must be a single character, got %q", opts.CSVDelimiter))
		}
		reader.Comma = runes[0]
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, types.NewValidation("file is empty")
	}
	if err != nil {
		return nil, types.NewValidation(fmt.Sprintf("invalid csv header: %v", err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.NewValidation(fmt.Sprintf("invalid csv row %d: %v", len(rows)+2, err))
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseJSON accepts either a top-level array of objects or an object with
// the record array at the loader's configured data path.
func parseJSON(data []byte, opts types.ProcessingOptions) ([]map[string]string, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, types.NewValidation(fmt.Sprintf("invalid json: %v", err))
	}

	if opts.JSONDataPath != "" {
		resolved, err := resolveDataPath(payload, opts.JSONDataPath)
		if err != nil {
			return nil, err
		}
		payload = resolved
	}

	list, ok := payload.([]any)
	if !ok {
		return nil, types.NewValidation("json payload is not an array of records")
	}

	rows := make([]map[string]string, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, types.NewValidation(fmt.Sprintf("json record %d is not an object", i+1))
		}
		row := make(map[string]string, len(obj))
		for key, value := range obj {
			row[key] = stringify(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// resolveDataPath walks a dot-separated path of object keys
func resolveDataPath(payload any, path string) (any, error) {
	current := payload
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, types.NewValidation(fmt.Sprintf("data path %q does not resolve to an object", path))
		}
		next, ok := obj[segment]
		if !ok {
			return nil, types.NewValidation(fmt.Sprintf("data path segment %q not found", segment))
		}
		current = next
	}
	return current, nil
}

// stringify renders scalar JSON values the way they appeared in the source.
// Nested structures are re-encoded so nothing is silently dropped.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		// Integers round-trip without a decimal point.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
