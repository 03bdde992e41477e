// Package strategy implements StrategyManager: loading, filtering and
// ranking persisted strategies for the live scanner. Validation follows an
// aggregate-then-report idiom (ValidationError/ValidationErrors) rather than
// returning on the first failure, so a caller sees every problem with a
// submitted strategy at once. domain.Strategy carries no semantic version
// field — its identity is the combination signature, not a user version
// string — so there is no schema-migration concern to validate here.
package strategy

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// ValidationError contains details about one validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("strategy validation failed: %s", strings.Join(msgs, "; "))
}

// knownIndicatorKinds is the closed set domain.IndicatorKind enumerates. A
// SignalSpec naming anything else is rejected at load time.
var knownIndicatorKinds = map[domain.IndicatorKind]bool{
	domain.IndicatorRSI: true, domain.IndicatorMACD: true, domain.IndicatorBollinger: true,
	domain.IndicatorEMA: true, domain.IndicatorMA200: true, domain.IndicatorStochastic: true,
	domain.IndicatorIchimoku: true, domain.IndicatorATR: true, domain.IndicatorADX: true,
	domain.IndicatorVolume: true, domain.IndicatorOBV: true, domain.IndicatorMFI: true,
	domain.IndicatorCMF: true, domain.IndicatorCCI: true, domain.IndicatorPSAR: true,
	domain.IndicatorKeltner: true, domain.IndicatorDonchian: true, domain.IndicatorROC: true,
	domain.IndicatorCMO: true, domain.IndicatorTEMA: true, domain.IndicatorDEMA: true,
	domain.IndicatorHMA: true, domain.IndicatorWMA: true, domain.IndicatorAwesomeOscillator: true,
	domain.IndicatorWilliamsR: true, domain.IndicatorBBW: true, domain.IndicatorTTMSqueeze: true,
	domain.IndicatorADLine: true, domain.IndicatorMARibbon: true, domain.IndicatorSupportResist: true,
	domain.IndicatorPivot: true, domain.IndicatorCDLEngulfing: true, domain.IndicatorCDLHammer: true,
	domain.IndicatorCDLDoji: true,
}

// conditionKnown is the narrow contract Validate needs on the condition
// registry so it doesn't import internal/signals for a struct field check
// (avoids a strategy<->signals import cycle risk as both packages grow).
type conditionKnown func(kind domain.IndicatorKind, value string) bool

// Validate checks a Strategy's structural invariants before it's accepted
// into the active set: it must carry at least one signal, every signal must name a known
// indicator kind, and risk/sizing fields must be sane. isKnownCondition is
// typically signals.(*Evaluator).IsEvent wrapped to discard the bool/err and
// just report existence; pass nil to skip condition-name checking (schema
// shape only).
func Validate(s *domain.Strategy, isKnownCondition conditionKnown) error {
	var errs ValidationErrors

	if s.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "strategy id is required"})
	}
	if len(s.Signals) == 0 {
		errs = append(errs, ValidationError{Field: "signals", Message: "strategy must declare at least one signal"})
	}
	for i, sig := range s.Signals {
		if !knownIndicatorKinds[sig.Type] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("signals[%d].type", i),
				Message: fmt.Sprintf("unknown indicator kind %q", sig.Type),
			})
			continue
		}
		if sig.Value == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("signals[%d].value", i), Message: "condition value is required"})
		} else if isKnownCondition != nil && !isKnownCondition(sig.Type, sig.Value) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("signals[%d].value", i),
				Message: fmt.Sprintf("unknown condition %q for kind %q", sig.Value, sig.Type),
			})
		}
	}
	if s.RiskPercentage < 0 || s.RiskPercentage > 100 {
		errs = append(errs, ValidationError{Field: "riskPercentage", Message: "must be in [0,100]"})
	}
	if s.StopLossAtrMultiplier < 0 {
		errs = append(errs, ValidationError{Field: "stopLossAtrMultiplier", Message: "must be non-negative"})
	}
	if s.TakeProfitAtrMultiplier < 0 {
		errs = append(errs, ValidationError{Field: "takeProfitAtrMultiplier", Message: "must be non-negative"})
	}
	if s.StrategyDirection != domain.DirectionLong && s.StrategyDirection != domain.DirectionShort {
		errs = append(errs, ValidationError{Field: "strategyDirection", Message: "must be long or short"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
