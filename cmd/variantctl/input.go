package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hanko-field/variants/internal/domain"
	"github.com/hanko-field/variants/internal/variations"
)

// matrixFile is the JSON document exchanged by the generate, apply and load commands.
type matrixFile struct {
	ProductID  string                       `json:"productId,omitempty"`
	Attributes []domain.AttributeDefinition `json:"attributes"`
	Variations []domain.Variation           `json:"variations"`
}

type attributeFile struct {
	Attributes []attributeEntry `yaml:"attributes"`
}

// attributeEntry accepts options as a list, as a "Red | Blue" string, or both.
type attributeEntry struct {
	Name         string   `yaml:"name"`
	Options      []string `yaml:"options"`
	Values       string   `yaml:"values"`
	Visible      *bool    `yaml:"visible"`
	ForVariation *bool    `yaml:"forVariation"`
}

// decimalKeys hold decimal strings; YAML numbers under these keys are converted to text.
var decimalKeys = map[string]struct{}{
	"regularPrice": {},
	"salePrice":    {},
	"weight":       {},
	"length":       {},
	"width":        {},
	"height":       {},
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("input path is required")
	}
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

func readAttributes(path string, stdin io.Reader) ([]domain.AttributeDefinition, error) {
	r, err := openInput(path, stdin)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	defs, err := decodeAttributes(r)
	if err != nil {
		return nil, fmt.Errorf("read attributes %s: %w", path, err)
	}
	return defs, nil
}

func decodeAttributes(r io.Reader) ([]domain.AttributeDefinition, error) {
	var file attributeFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	defs := make([]domain.AttributeDefinition, 0, len(file.Attributes))
	for i, entry := range file.Attributes {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("attribute %d has no name", i+1)
		}
		options := append([]string(nil), entry.Options...)
		if strings.TrimSpace(entry.Values) != "" {
			options = append(options, variations.ParseOptions(entry.Values)...)
		}
		defs = append(defs, domain.AttributeDefinition{
			Name:         name,
			Options:      options,
			Visible:      boolOr(entry.Visible, true),
			ForVariation: boolOr(entry.ForVariation, true),
		})
	}
	return variations.NormalizeAttributes(defs), nil
}

func readTemplate(path string, stdin io.Reader) (variations.BulkTemplate, error) {
	r, err := openInput(path, stdin)
	if err != nil {
		return variations.BulkTemplate{}, err
	}
	defer r.Close()
	tpl, err := decodeTemplate(r)
	if err != nil {
		return variations.BulkTemplate{}, fmt.Errorf("read template %s: %w", path, err)
	}
	return tpl, nil
}

// decodeTemplate reads a YAML bulk template. Keys present in the document are applied, including
// explicit zero values; null leaves a field untouched.
func decodeTemplate(r io.Reader) (variations.BulkTemplate, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return variations.BulkTemplate{}, err
	}
	var tpl variations.BulkTemplate
	if len(raw) == 0 {
		return tpl, nil
	}
	payload, err := json.Marshal(normalizeDecimals(raw))
	if err != nil {
		return variations.BulkTemplate{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tpl); err != nil {
		return variations.BulkTemplate{}, err
	}
	if err := tpl.Validate(); err != nil {
		return variations.BulkTemplate{}, err
	}
	return tpl, nil
}

func normalizeDecimals(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if _, ok := decimalKeys[key]; ok {
				out[key] = decimalText(item)
				continue
			}
			out[key] = normalizeDecimals(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeDecimals(item)
		}
		return out
	default:
		return value
	}
}

func decimalText(value any) any {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return value
	}
}

func readProductFields(path string, stdin io.Reader) (map[string]any, error) {
	r, err := openInput(path, stdin)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var fields map[string]any
	if err := yaml.NewDecoder(r).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read product fields %s: %w", path, err)
	}
	return fields, nil
}

func readMatrix(path string, stdin io.Reader) (matrixFile, error) {
	r, err := openInput(path, stdin)
	if err != nil {
		return matrixFile{}, err
	}
	defer r.Close()
	var matrix matrixFile
	if err := json.NewDecoder(r).Decode(&matrix); err != nil {
		return matrixFile{}, fmt.Errorf("read matrix %s: %w", path, err)
	}
	return matrix, nil
}

func writeJSON(path string, stdout io.Writer, value any) error {
	w := stdout
	if path = strings.TrimSpace(path); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// selector matches variations by a subset of their options, e.g. "Color=Red|Size=M".
type selector map[string]string

func parseSelector(raw string) (selector, error) {
	sel := selector{}
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, option, ok := strings.Cut(part, "=")
		name, option = strings.TrimSpace(name), strings.TrimSpace(option)
		if !ok || name == "" || option == "" {
			return nil, fmt.Errorf("invalid selector %q: expected Name=Option", part)
		}
		sel[name] = option
	}
	return sel, nil
}

func (s selector) match(vars []domain.Variation) []string {
	ids := make([]string, 0, len(vars))
	for _, v := range vars {
		matched := true
		for name, want := range s {
			if got, ok := v.Option(name); !ok || got != want {
				matched = false
				break
			}
		}
		if matched {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// imageAssignment binds an uploaded object to every variation matching the selector.
type imageAssignment struct {
	match selector
	ref   string
}

// imageFlags collects repeated -image Selector@ref flags.
type imageFlags []imageAssignment

func (f *imageFlags) String() string {
	parts := make([]string, len(*f))
	for i, a := range *f {
		parts[i] = a.ref
	}
	return strings.Join(parts, ",")
}

func (f *imageFlags) Set(value string) error {
	rawSel, ref, ok := strings.Cut(value, "@")
	if !ok || strings.TrimSpace(ref) == "" {
		return fmt.Errorf("invalid image %q: expected Name=Option@ref", value)
	}
	sel, err := parseSelector(rawSel)
	if err != nil {
		return err
	}
	*f = append(*f, imageAssignment{match: sel, ref: strings.TrimSpace(ref)})
	return nil
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
