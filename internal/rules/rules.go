// Package rules defines the built-in scan categories and loads replacement
// definitions from YAML.
package rules

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"scandesk/internal/domain"
)

const (
	CategoryShipment  = "scan"
	CategoryComponent = "scan1"
	CategoryReconcile = "reconcile"
)

type File struct {
	Categories []domain.Category `yaml:"categories"`
}

// icRule is the permissive optional IC rule: validated only when present.
func icRule(length int, prefix string) domain.FieldRule {
	return domain.FieldRule{
		ExactLength:         length,
		RequiredPrefix:      prefix,
		Unique:              true,
		SkipChecksWhenEmpty: true,
	}
}

// Default returns the built-in categories in display order.
func Default() []domain.Category {
	required := domain.FieldRule{Required: true}
	return []domain.Category{
		{
			Name: CategoryShipment,
			Fields: []domain.FieldSpec{
				{Name: "TrackingNumber", Rule: required},
				{Name: "QRCode", Rule: required},
				{Name: "IMEI", Rule: required},
			},
		},
		{
			Name: CategoryComponent,
			Fields: []domain.FieldSpec{
				{Name: "QRCode", Rule: domain.FieldRule{Required: true, Unique: true}},
				{Name: "black_ic", Rule: icRule(20, "6641")},
				{Name: "blue_ic", Rule: icRule(19, "6601")},
				{Name: "u_blue_ic", Rule: icRule(19, "6601")},
				{Name: "red_ic", Rule: icRule(20, "6601")},
			},
		},
		{
			Name: CategoryReconcile,
			Fields: []domain.FieldSpec{
				{Name: "TrackingNumber", Rule: required},
				{Name: "QRCode", Rule: required},
				{Name: "Serial", Rule: domain.FieldRule{ExactLength: 15, Digits: true, SkipChecksWhenEmpty: true}},
			},
			Reconcile: &domain.ReconcileSpec{
				TrackingField: "TrackingNumber",
				CodeField:     "QRCode",
				SerialField:   "Serial",
			},
		},
	}
}

// Load reads category definitions from a YAML file. An empty path yields
// the built-in categories.
func Load(path string) ([]domain.Category, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	cats, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cats, nil
}

func Parse(data []byte) ([]domain.Category, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("parse rules: no categories defined")
	}
	for _, c := range f.Categories {
		for _, fs := range c.Fields {
			if fs.Rule.ExactLength < 0 {
				return nil, fmt.Errorf("category %s field %s: negative exact_length", c.Name, fs.Name)
			}
		}
	}
	return f.Categories, nil
}

// Marshal renders categories in the rules file format.
func Marshal(cats []domain.Category) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Categories: cats}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
