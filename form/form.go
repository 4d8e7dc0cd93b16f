// Package form sanitizes and validates user input before a submission is
// admitted. Field checks run on go-playground/validator.
package form

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is matched by every Errors value.
var ErrInvalid = errors.New("form: invalid input")

// DefaultMaxLength caps sanitized input when no limit is given.
const DefaultMaxLength = 1000

// Messages reported per failed rule.
const (
	MsgRequired = "Ce champ est requis"
	MsgMinFmt   = "Minimum %d caractères requis"
	MsgMaxFmt   = "Maximum %d caractères autorisés"
	MsgPattern  = "Format invalide"
	MsgCustom   = "Validation personnalisée échouée"
)

var (
	validate     = newValidator()
	scriptScheme = regexp.MustCompile(`(?i)javascript:`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Phone numbers may carry any punctuation; only the digit count matters.
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		n := 0
		for _, r := range fl.Field().String() {
			if unicode.IsDigit(r) {
				n++
			}
		}
		return n >= 10 && n <= 15
	})
	return v
}

// Rule constrains one field. Zero fields impose nothing.
type Rule struct {
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Custom    func(value string) bool
}

// Schema maps field names to their rules.
type Schema map[string]Rule

// FieldError reports one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the list of failed rules of a submission.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrInvalid.
func (e Errors) Unwrap() error {
	return ErrInvalid
}

// Validate checks data against the schema and returns every failure,
// ordered by field name. A missing optional field skips its other rules.
func (s Schema) Validate(data url.Values) Errors {
	fields := make([]string, 0, len(s))
	for field := range s {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var errs Errors
	for _, field := range fields {
		rule := s[field]
		value := data.Get(field)

		if rule.Required && validate.Var(strings.TrimSpace(value), "required") != nil {
			errs = append(errs, FieldError{Field: field, Message: MsgRequired})
			continue
		}
		if value == "" {
			continue
		}

		if rule.MinLength > 0 && validate.Var(value, "min="+strconv.Itoa(rule.MinLength)) != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(MsgMinFmt, rule.MinLength)})
		}
		if rule.MaxLength > 0 && validate.Var(value, "max="+strconv.Itoa(rule.MaxLength)) != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(MsgMaxFmt, rule.MaxLength)})
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
			errs = append(errs, FieldError{Field: field, Message: MsgPattern})
		}
		if rule.Custom != nil && !rule.Custom(value) {
			errs = append(errs, FieldError{Field: field, Message: MsgCustom})
		}
	}
	return errs
}

// Check is Validate returning a plain error, nil when data is valid.
func (s Schema) Check(data url.Values) error {
	if errs := s.Validate(data); len(errs) > 0 {
		return errs
	}
	return nil
}

// Sanitize applies SanitizeInput to every schema field present in data,
// capped at the field's MaxLength or DefaultMaxLength.
func (s Schema) Sanitize(data url.Values) {
	for field, rule := range s {
		if _, ok := data[field]; !ok {
			continue
		}
		limit := rule.MaxLength
		if limit <= 0 {
			limit = DefaultMaxLength
		}
		data.Set(field, SanitizeInput(data.Get(field), limit))
	}
}

// SanitizeInput trims input, strips angle brackets and javascript: schemes,
// and truncates the result to maxLength characters. A non-positive
// maxLength means DefaultMaxLength.
func SanitizeInput(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	out := strings.TrimSpace(input)
	out = strings.NewReplacer("<", "", ">", "").Replace(out)
	out = scriptScheme.ReplaceAllString(out, "")
	return truncate(out, maxLength)
}

// ValidateEmail reports whether email, trimmed, is an address on a fully
// qualified domain.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if validate.Var(email, "required,email") != nil {
		return false
	}
	domain := email[strings.LastIndexByte(email, '@')+1:]
	return validate.Var(domain, "fqdn") == nil
}

// ValidatePhone reports whether phone holds 10 to 15 digits.
func ValidatePhone(phone string) bool {
	return validate.Var(phone, "phone_digits") == nil
}

// ValidateURL reports whether raw is an absolute http or https URL.
func ValidateURL(raw string) bool {
	return validate.Var(raw, "required,http_url") == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
