package learner

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// PatternFile is the YAML document used for pattern import and export.
type PatternFile struct {
	Patterns []models.ThreatPattern `yaml:"patterns"`
}

// ExportPatterns writes every stored pattern as YAML.
func (l *Learner) ExportPatterns(ctx context.Context, w io.Writer) error {
	patterns, err := l.Patterns(ctx)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(PatternFile{Patterns: patterns}); err != nil {
		return fmt.Errorf("failed to encode patterns: %w", err)
	}
	return enc.Close()
}

// ImportPatterns reads a YAML pattern file and stores every pattern.
// Patterns keep their id when present (replacing a stored one); patterns
// without a source are marked imported. Nothing is stored if any pattern
// fails validation.
func (l *Learner) ImportPatterns(ctx context.Context, r io.Reader) (int, error) {
	var file PatternFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to decode pattern file: %w", err)
	}

	for i, p := range file.Patterns {
		if err := Validate(p); err != nil {
			return 0, fmt.Errorf("pattern %d (%s): %w", i, p.Name, err)
		}
	}

	stored := 0
	for _, p := range file.Patterns {
		if p.Source == "" {
			p.Source = models.PatternSourceImported
		}
		if _, err := l.AddPattern(ctx, p); err != nil {
			return stored, err
		}
		stored++
	}

	l.logger.Info("Patterns imported", zap.Int("count", stored))
	return stored, nil
}
