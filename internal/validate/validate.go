// internal/validate/validate.go
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/observability"
)

// DefaultMinPasswordLength is the minimum accepted by Password when no
// length is given.
const DefaultMinPasswordLength = 8

var (
	phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)
	nonDigits    = regexp.MustCompile(`\D`)

	sharedOnce sync.Once
	shared     *validator.Validate
)

// engine returns the process-wide validator. validator.Validate caches
// struct metadata and is safe for concurrent use.
func engine() *validator.Validate {
	sharedOnce.Do(func() {
		shared = validator.New(validator.WithRequiredStructEnabled())
	})
	return shared
}

// Validator checks test data and logs each verdict.
type Validator struct {
	v   *validator.Validate
	log *zap.Logger
}

// New returns a Validator. A nil logger discards output.
func New(logger *zap.Logger) *Validator {
	return &Validator{v: engine(), log: observability.OrNop(logger).Named("validate")}
}

// Struct validates v against its `validate` tags.
func (x *Validator) Struct(v any) error {
	if err := x.v.Struct(v); err != nil {
		x.log.Warn("Struct validation failed", zap.String("type", fmt.Sprintf("%T", v)), zap.Error(err))
		return err
	}
	return nil
}

func (x *Validator) tag(kind, value, tag string) bool {
	ok := x.v.Var(value, tag) == nil
	x.log.Info(kind+" validation", zap.String("value", value), zap.Bool("valid", ok))
	return ok
}

func (x *Validator) Email(email string) bool {
	return x.tag("Email", email, "required,email")
}

// URL accepts absolute http and https URLs.
func (x *Validator) URL(url string) bool {
	return x.tag("URL", url, "required,http_url")
}

// Password requires minLength characters (DefaultMinPasswordLength when
// minLength <= 0) including an upper case letter, a lower case letter and a
// digit.
func (x *Validator) Password(password string, minLength int) bool {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	if n := len([]rune(password)); n < minLength {
		x.log.Warn("Password too short", zap.Int("length", n), zap.Int("min", minLength))
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	ok := upper && lower && digit
	x.log.Info("Password validation", zap.Bool("valid", ok))
	return ok
}

// Phone accepts ten-ish digit numbers with optional +, parentheses and
// separators. Spaces are ignored.
func (x *Validator) Phone(phone string) bool {
	ok := phonePattern.MatchString(strings.ReplaceAll(phone, " ", ""))
	x.log.Info("Phone validation", zap.String("value", phone), zap.Bool("valid", ok))
	return ok
}

// CreditCard strips separators, requires 13 to 19 digits and a valid Luhn
// checksum.
func (x *Validator) CreditCard(number string) bool {
	card := nonDigits.ReplaceAllString(number, "")
	if len(card) < 13 || len(card) > 19 {
		x.log.Warn("Card length invalid", zap.Int("length", len(card)))
		return false
	}
	ok := x.v.Var(card, "credit_card") == nil
	x.log.Info("Card validation", zap.Bool("valid", ok))
	return ok
}

// NotEmpty is false for nil and for values whose string form is blank.
func (x *Validator) NotEmpty(value any) bool {
	ok := value != nil && strings.TrimSpace(fmt.Sprint(value)) != ""
	x.log.Info("Not empty validation", zap.Bool("valid", ok))
	return ok
}

// Length checks the rune count of value. A negative bound is not enforced.
func (x *Validator) Length(value string, minLength, maxLength int) bool {
	n := len([]rune(value))
	if minLength >= 0 && n < minLength {
		x.log.Warn("Length too short", zap.Int("length", n), zap.Int("min", minLength))
		return false
	}
	if maxLength >= 0 && n > maxLength {
		x.log.Warn("Length too long", zap.Int("length", n), zap.Int("max", maxLength))
		return false
	}
	x.log.Info("Length validation", zap.Int("length", n), zap.Bool("valid", true))
	return true
}

// MatchesPattern reports whether pattern matches at the start of value. An
// invalid pattern never matches.
func (x *Validator) MatchesPattern(value, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		x.log.Warn("Invalid pattern", zap.String("pattern", pattern), zap.Error(err))
		return false
	}
	loc := re.FindStringIndex(value)
	ok := loc != nil && loc[0] == 0
	x.log.Info("Pattern validation", zap.Bool("valid", ok))
	return ok
}
