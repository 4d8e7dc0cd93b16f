package form

import (
	"net/url"
	"regexp"
	"strings"
)

// Contact form fields and their length caps.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldMessage = "message"

	MaxNameLength    = 100
	MaxPhoneLength   = 20
	MaxMessageLength = 2000
)

var phoneNoise = regexp.MustCompile(`[^0-9+\-() ]`)

// ContactSchema returns the rules of the contact form: name, email and
// message are required, phone is optional.
func ContactSchema() Schema {
	return Schema{
		FieldName:    {Required: true, MaxLength: MaxNameLength},
		FieldEmail:   {Required: true, Custom: ValidateEmail},
		FieldPhone:   {MaxLength: MaxPhoneLength, Custom: ValidatePhone},
		FieldMessage: {Required: true, MaxLength: MaxMessageLength},
	}
}

// NormalizeContact rewrites a contact submission in place the way the
// receiving function stores it: trimmed and capped name and message, a
// trimmed lower-case email, and a phone reduced to digits and + - ( ).
func NormalizeContact(data url.Values) {
	if _, ok := data[FieldName]; ok {
		data.Set(FieldName, truncate(strings.TrimSpace(data.Get(FieldName)), MaxNameLength))
	}
	if _, ok := data[FieldEmail]; ok {
		data.Set(FieldEmail, strings.ToLower(strings.TrimSpace(data.Get(FieldEmail))))
	}
	if _, ok := data[FieldPhone]; ok {
		phone := phoneNoise.ReplaceAllString(strings.TrimSpace(data.Get(FieldPhone)), "")
		data.Set(FieldPhone, truncate(phone, MaxPhoneLength))
	}
	if _, ok := data[FieldMessage]; ok {
		data.Set(FieldMessage, truncate(strings.TrimSpace(data.Get(FieldMessage)), MaxMessageLength))
	}
}
