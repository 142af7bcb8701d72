// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/okr-evaluator/pkg/types"
)

// Format selects the export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ExportEntry is one objective with its key results.
type ExportEntry struct {
	types.Objective `yaml:",inline"`
	KeyResults      []types.KeyResult `json:"key_results" yaml:"key_results"`
}

// Export writes the whole history to w in the given format.
func (s *Store) Export(ctx context.Context, w io.Writer, format Format) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown export format %q (want yaml or json)", format)
}

func (s *Store) exportEntries(ctx context.Context) ([]ExportEntry, error) {
	objectives, err := s.ListObjectives(ctx, types.FilterSpec{})
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(objectives))
	for i, o := range objectives {
		krs, err := s.KeyResults(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		entries[i] = ExportEntry{Objective: o, KeyResults: krs}
	}
	return entries, nil
}
