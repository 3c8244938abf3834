// internal/schema/validate.go
package schema

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"
)

// Light format checks applied before the domain constraints. Full RFC
// validation is left to the mail/http clients that eventually use the value.
var (
	emailFormatRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	urlFormatRegex   = regexp.MustCompile(`^(https?://)?[^\s/]+\.[^\s/]+(/[^\s]*)?$`)
)

var errValueRequired = errors.New("value is required")

func (f StringField) Validate(value any) (any, error) {
	if value == nil {
		if f.Required {
			return nil, errValueRequired
		}
		return nil, nil
	}
	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", value)
	}
	if f.Required && str == "" {
		return nil, errValueRequired
	}
	if f.MinLength != nil && len(str) < *f.MinLength {
		return nil, fmt.Errorf("must be at least %d characters", *f.MinLength)
	}
	if f.MaxLength != nil && len(str) > *f.MaxLength {
		return nil, fmt.Errorf("must be at most %d characters", *f.MaxLength)
	}
	if f.Pattern != "" {
		// A pattern that fails to compile is treated as no pattern constraint.
		if re, err := regexp.Compile(f.Pattern); err == nil && !re.MatchString(str) {
			return nil, fmt.Errorf("does not match pattern %q", f.Pattern)
		}
	}
	return str, nil
}

func (f NumberField) Validate(value any) (any, error) {
	if value == nil {
		if f.Required {
			return nil, errValueRequired
		}
		return nil, nil
	}
	var n int64
	switch v := value.(type) {
	case float64: // JSON numbers decode as float64
		if math.Floor(v) != v {
			return nil, errors.New("expected an integer")
		}
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return nil, fmt.Errorf("expected an integer, got %T", value)
	}
	if f.Min != nil && n < *f.Min {
		return nil, fmt.Errorf("must be at least %d", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return nil, fmt.Errorf("must be at most %d", *f.Max)
	}
	return n, nil
}

func (f BooleanField) Validate(value any) (any, error) {
	// Absent booleans coerce to false, never an error.
	if value == nil {
		return false, nil
	}
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected a boolean, got %T", value)
	}
	return b, nil
}

func (f DateField) Validate(value any) (any, error) {
	if value == nil {
		if f.Required {
			return nil, errValueRequired
		}
		return nil, nil
	}
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		if v == "" {
			if f.Required {
				return nil, errValueRequired
			}
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.New("expected an ISO-8601 timestamp")
		}
		return t.UTC(), nil
	default:
		return nil, fmt.Errorf("expected an ISO-8601 timestamp, got %T", value)
	}
}

func (f EmailField) Validate(value any) (any, error) {
	return validateDomainConstrained(value, f.Required, f.Only, f.Except, emailFormatRegex, "email address")
}

func (f UrlField) Validate(value any) (any, error) {
	return validateDomainConstrained(value, f.Required, f.Only, f.Except, urlFormatRegex, "url")
}

// validateDomainConstrained implements the shared Email/Url rules: optional
// format check, then only/except domain lists. When both lists are set, only
// `only` is honored (documented precedence, not an error).
func validateDomainConstrained(value any, required bool, only, except []string, format *regexp.Regexp, kind string) (any, error) {
	if value == nil {
		if required {
			return nil, errValueRequired
		}
		return nil, nil
	}
	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", value)
	}
	if str == "" {
		if required {
			return nil, errValueRequired
		}
		return nil, nil
	}
	if !format.MatchString(str) {
		return nil, fmt.Errorf("invalid %s", kind)
	}
	if len(only) > 0 {
		for _, pattern := range only {
			if MatchDomain(str, pattern) {
				return str, nil
			}
		}
		return nil, errors.New("domain is not in the allowed list")
	}
	if len(except) > 0 {
		for _, pattern := range except {
			if MatchDomain(str, pattern) {
				return nil, errors.New("domain is in the blocked list")
			}
		}
	}
	return str, nil
}

func (f SelectField) Validate(value any) (any, error) {
	if value == nil {
		if f.Required {
			return nil, errValueRequired
		}
		if f.Multiple() {
			return nil, nil
		}
		return nil, nil
	}
	selected, err := toStringSlice(value)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 && f.Required {
		return nil, errValueRequired
	}
	if f.MinSelected != nil && len(selected) < *f.MinSelected {
		return nil, fmt.Errorf("select at least %d options", *f.MinSelected)
	}
	if f.MaxSelected != nil && len(selected) > *f.MaxSelected {
		return nil, fmt.Errorf("select at most %d options", *f.MaxSelected)
	}
	declared := map[string]struct{}{}
	for _, opt := range f.Options {
		declared[opt] = struct{}{}
	}
	for _, sel := range selected {
		if _, ok := declared[sel]; !ok {
			return nil, fmt.Errorf("%q is not a declared option", sel)
		}
	}
	if f.Multiple() {
		return selected, nil
	}
	if len(selected) == 0 {
		return nil, nil
	}
	return selected[0], nil
}

func (f RelationField) Validate(value any) (any, error) {
	if value == nil {
		if f.Required {
			return nil, errValueRequired
		}
		return nil, nil
	}
	// Referential existence is left to the foreign-key constraint at write
	// time; only shape and count are checked here.
	if f.Cardinality == CardinalitySingle {
		id, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a record id, got %T", value)
		}
		if id == "" {
			if f.Required {
				return nil, errValueRequired
			}
			return nil, nil
		}
		return id, nil
	}
	ids, err := toStringSlice(value)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && f.Required {
		return nil, errValueRequired
	}
	if f.MinSelected != nil && len(ids) < *f.MinSelected {
		return nil, fmt.Errorf("select at least %d records", *f.MinSelected)
	}
	if f.MaxSelected != nil && len(ids) > *f.MaxSelected {
		return nil, fmt.Errorf("select at most %d records", *f.MaxSelected)
	}
	return ids, nil
}

// toStringSlice accepts a bare string, []string, or JSON-decoded []any.
func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string element, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %T", value)
	}
}
