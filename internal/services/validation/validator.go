// Package validation evaluates a single field value against its rule.
package validation

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"scandesk/internal/domain"
)

// Validate checks one field value against rule and the category's existing
// records. Checks run in a fixed order: presence, length, prefix, digits,
// uniqueness.
func Validate(field, value string, rule domain.FieldRule, existing []domain.ScanRecord) domain.ValidationOutcome {
	if value == "" {
		if rule.Required {
			return fail(domain.MissingField)
		}
		if rule.SkipChecksWhenEmpty {
			return domain.ValidationOutcome{OK: true}
		}
	}
	if rule.ExactLength > 0 && utf8.RuneCountInString(value) != rule.ExactLength {
		return fail(domain.BadFormat)
	}
	if rule.RequiredPrefix != "" && !strings.HasPrefix(value, rule.RequiredPrefix) {
		return fail(domain.BadFormat)
	}
	if rule.Digits && !AllDigits(value) {
		return fail(domain.BadFormat)
	}
	// empty values never collide
	if rule.Unique && value != "" {
		for _, rec := range existing {
			if rec.Value(field) == value {
				return fail(domain.DuplicateValue)
			}
		}
	}
	return domain.ValidationOutcome{OK: true}
}

func fail(kind domain.ErrorKind) domain.ValidationOutcome {
	return domain.ValidationOutcome{Reason: kind}
}

// AllDigits reports whether s is non-empty and made only of ASCII digits.
func AllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Normalize trims scanner whitespace and folds full-width characters to
// their ASCII forms.
func Normalize(raw string) string {
	return strings.TrimSpace(width.Narrow.String(raw))
}

// Message renders the operator-facing text for a rejected field.
func Message(field string, kind domain.ErrorKind, rule domain.FieldRule) string {
	switch kind {
	case domain.MissingField:
		return field + " is required"
	case domain.BadFormat:
		var parts []string
		if rule.ExactLength > 0 {
			parts = append(parts, strconv.Itoa(rule.ExactLength)+" characters")
		}
		if rule.RequiredPrefix != "" {
			parts = append(parts, "starting with "+rule.RequiredPrefix)
		}
		if rule.Digits {
			parts = append(parts, "digits only")
		}
		if len(parts) == 0 {
			return field + " has an invalid format"
		}
		return field + " must be " + strings.Join(parts, ", ")
	case domain.DuplicateValue:
		return field + " has already been scanned"
	case domain.UnresolvedCode:
		return field + " does not match any known item"
	}
	return field + " was rejected"
}
