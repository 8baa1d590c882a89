package validation

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation messages per field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Error joins every message, fields in sorted order, so the bag can travel as
// an error.
func (e *Errors) Error() string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	var msgs []string
	for _, f := range fields {
		msgs = append(msgs, e.Bag[f]...)
	}
	return strings.Join(msgs, " ")
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"container.max_iterations": "required|integer|gte:1"}
type Rules map[string]string

// Validator validates a flat map of input values.
type Validator struct {
	data   map[string]string
	rules  Rules
	errors *Errors
	ran    bool
}

// Make creates a new Validator.
func Make(data map[string]string, rules Rules) *Validator {
	return &Validator{
		data:   data,
		rules:  rules,
		errors: &Errors{},
	}
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	if !v.ran {
		v.validate()
		v.ran = true
	}
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors { return v.errors }

// Err returns the error bag when validation fails, nil otherwise.
func (v *Validator) Err() error {
	if v.Fails() {
		return v.errors
	}
	return nil
}

// ── Core validation loop ─────────────────────────────────────────────────────

// check reports a failure message, or "" when the value passes.
type check func(field, value, param string) string

var checks = map[string]check{
	"required": func(field, value, _ string) string {
		if strings.TrimSpace(value) == "" {
			return fmt.Sprintf("The %s field is required.", field)
		}
		return ""
	},
	"integer": func(field, value, _ string) string {
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Sprintf("The %s must be an integer.", field)
		}
		return ""
	},
	"boolean": func(field, value, _ string) string {
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Sprintf("The %s field must be true or false.", field)
		}
		return ""
	},
	"max": func(field, value, param string) string {
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) > n {
			return fmt.Sprintf("The %s may not be greater than %d characters.", field, n)
		}
		return ""
	},
	"gte": func(field, value, param string) string {
		f, _ := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(param, 64)
		if f < t {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
		}
		return ""
	},
	"lte": func(field, value, param string) string {
		f, _ := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(param, 64)
		if f > t {
			return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
		}
		return ""
	},
	"in": func(field, value, param string) string {
		for _, a := range strings.Split(param, ",") {
			if strings.TrimSpace(a) == value {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	},
	"alpha_dash": func(field, value, _ string) string {
		if !identifier.MatchString(value) {
			return fmt.Sprintf("The %s may only contain letters, numbers, dashes and underscores.", field)
		}
		return ""
	},
	"list": func(field, value, _ string) string {
		for _, item := range strings.Split(value, ",") {
			if !identifier.MatchString(strings.TrimSpace(item)) {
				return fmt.Sprintf("The %s must be a comma-separated list of names.", field)
			}
		}
		return ""
	},
	"hostport": func(field, value, _ string) string {
		if _, port, err := net.SplitHostPort(value); err != nil || port == "" {
			return fmt.Sprintf("The %s must be a host:port address.", field)
		}
		return ""
	},
}

var identifier = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func (v *Validator) validate() {
	for field, ruleStr := range v.rules {
		value := v.data[field]

		for _, rule := range strings.Split(ruleStr, "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}

			// min:3 → name=min, param=3
			name, param, _ := strings.Cut(rule, ":")

			if name == "sometimes" {
				if value == "" {
					break
				}
				continue
			}
			c, ok := checks[name]
			if !ok {
				v.errors.add(field, fmt.Sprintf("The %s rule %q is unknown.", field, name))
				break
			}
			if msg := c(field, value, param); msg != "" {
				v.errors.add(field, msg)
				break // bail on first failure
			}
		}
	}
}
