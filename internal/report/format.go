// File: internal/report/format.go
// Brief: Output formats and structured (json/yaml) encoding.

// Package report renders detection results, plans and run reports for
// humans (tables) and machines (json, yaml).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected table, json, or yaml)", raw)
	}
}

// writeStructured encodes v as indented JSON or as YAML derived from the
// JSON tags.
func writeStructured(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		raw = append(raw, '\n')
		_, err = w.Write(raw)
		return err
	case FormatYAML:
		raw, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	default:
		return fmt.Errorf("format %q is not structured", format)
	}
}
