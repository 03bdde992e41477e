// Package validation holds the request-validation helpers the admin HTTP
// surface (internal/api) runs untrusted JSON bodies through before they
// reach the scanner or backtest runner.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// ValidationError is one field-level failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors accumulates every failure a Validator collects before
// a handler responds, so a bad request reports all of its problems at once
// instead of one round-trip per field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "validation errors: " + strings.Join(msgs, "; ")
}

// HasErrors reports whether any failure was recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator collects field errors across a single request body.
type Validator struct {
	errors ValidationErrors
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// AddError records a field failure.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Errors returns every failure recorded so far.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// HasErrors reports whether any failure was recorded.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Required fails if value is empty once trimmed.
func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
}

// OneOf fails unless value is exactly one of allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// symbolRegex matches the flat symbol form exchange.Client expects
// (BTCUSDT), not the slash-delimited form (BTC/USDT) a caller might send.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

// Symbol validates a coin symbol already run through SanitizeSymbol.
func (v *Validator) Symbol(field, value string) {
	if !symbolRegex.MatchString(value) {
		v.AddError(field, "must be a flat exchange symbol, e.g. BTCUSDT")
	}
}

// SanitizeSymbol uppercases a coin symbol and strips whitespace and any
// slash a caller supplied, so "btc/usdt" and "BTC/USDT" both normalize to
// the flat form Symbol validates and BinanceClient accepts.
func SanitizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.Join(strings.Fields(symbol), ""))
	symbol = strings.ReplaceAll(symbol, "/", "")
	return symbol
}

// tradingModes lists every valid domain.TradingMode value, in the order
// ValidateTradingMode reports them.
var tradingModes = []string{string(domain.ModeTestnet), string(domain.ModeLive)}

// ValidateTradingMode checks mode against domain.TradingMode's enum before
// a handler converts the raw request string into one, so an invalid mode
// never reaches Scanner.SwitchMode as a typed value.
func ValidateTradingMode(mode string) error {
	v := NewValidator()
	v.Required("mode", mode)
	if v.HasErrors() {
		return v.Errors()
	}
	v.OneOf("mode", mode, tradingModes)
	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}
