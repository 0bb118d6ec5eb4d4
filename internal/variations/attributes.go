package variations

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/hanko-field/variants/internal/domain"
)

// OptionDelimiter separates option values in the raw attribute text field.
const OptionDelimiter = "|"

// ParseOptions splits a pipe-delimited option string ("Red | Blue | Green") into a trimmed list
// with empty entries and exact duplicates removed. Order of first occurrence is preserved.
func ParseOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return normalizeOptions(strings.Split(raw, OptionDelimiter))
}

// JoinOptions renders an option list back into the pipe-delimited text form.
func JoinOptions(options []string) string {
	return strings.Join(options, " "+OptionDelimiter+" ")
}

// NormalizeAttributes trims names and option lists of user-edited definitions. Attributes without
// a name and later duplicates of an attribute name (compared case-insensitively) are dropped.
// Attributes left with zero options are kept so generation collapses to an empty matrix.
func NormalizeAttributes(defs []domain.AttributeDefinition) []domain.AttributeDefinition {
	out := make([]domain.AttributeDefinition, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	folder := cases.Fold()
	for _, def := range defs {
		name := norm.NFC.String(strings.TrimSpace(def.Name))
		if name == "" {
			continue
		}
		key := folder.String(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, domain.AttributeDefinition{
			Name:         name,
			Options:      normalizeOptions(def.Options),
			Visible:      def.Visible,
			ForVariation: def.ForVariation,
		})
	}
	return out
}

// VariationAttributes returns the attributes flagged for use in variations, in order.
func VariationAttributes(defs []domain.AttributeDefinition) []domain.AttributeDefinition {
	out := make([]domain.AttributeDefinition, 0, len(defs))
	for _, def := range defs {
		if def.ForVariation {
			out = append(out, def)
		}
	}
	return out
}

func normalizeOptions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := norm.NFC.String(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
