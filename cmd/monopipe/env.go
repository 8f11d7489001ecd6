// File: cmd/monopipe/env.go
// Brief: CLI command wiring and implementation for 'env'.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/example/monopipe/internal/envcatalog"
	"github.com/example/monopipe/internal/report"
)

type envRow struct {
	Category    string `json:"category"`
	Variable    string `json:"variable"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description"`
}

func envRows(showAll bool) []envRow {
	vars := envcatalog.Catalog()
	out := make([]envRow, 0, len(vars))
	for _, v := range vars {
		if v.Internal && !showAll {
			continue
		}
		value := ""
		if !v.Dynamic {
			value = strings.TrimSpace(os.Getenv(v.Name))
		}
		out = append(out, envRow{
			Category:    v.Category,
			Variable:    v.Name,
			Value:       value,
			Description: v.Description,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Variable < out[j].Variable
	})
	return out
}

func filterEnvRows(rows []envRow, category, match string, onlySet bool) []envRow {
	category = strings.TrimSpace(category)
	match = strings.ToLower(strings.TrimSpace(match))
	out := rows[:0]
	for _, row := range rows {
		if category != "" && !strings.EqualFold(row.Category, category) {
			continue
		}
		if match != "" {
			haystack := strings.ToLower(row.Variable + "\n" + row.Description + "\n" + row.Category)
			if !strings.Contains(haystack, match) {
				continue
			}
		}
		if onlySet && row.Value == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

func newEnvCommand() *cobra.Command {
	var (
		output   = "table"
		showAll  bool
		onlySet  bool
		category string
		match    string
	)
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show environment variables used by monopipe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			rows := filterEnvRows(envRows(showAll), category, match, onlySet)
			out := cmd.OutOrStdout()
			switch format {
			case report.FormatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			case report.FormatYAML:
				b, err := yaml.Marshal(rows)
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tVARIABLE\tVALUE\tDESCRIPTION")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Category, row.Variable, row.Value, row.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format: table, json, or yaml")
	cmd.Flags().BoolVar(&showAll, "all", false, "Include variables monopipe exports to task commands")
	cmd.Flags().BoolVar(&onlySet, "set", false, "Show only variables with a non-empty value")
	cmd.Flags().StringVar(&category, "category", "", "Filter to a category (case-insensitive)")
	cmd.Flags().StringVar(&match, "match", "", "Filter by substring match against name, category or description")
	return cmd
}
