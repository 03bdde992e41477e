package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Required(t *testing.T) {
	v := NewValidator()

	v.Required("field", "")
	assert.True(t, v.HasErrors())
	assert.Equal(t, "field", v.Errors()[0].Field)
	assert.Contains(t, v.Errors()[0].Message, "required")

	v = NewValidator()
	v.Required("field", "  ")
	assert.True(t, v.HasErrors())

	v = NewValidator()
	v.Required("field", "value")
	assert.False(t, v.HasErrors())
}

func TestValidator_OneOf(t *testing.T) {
	v := NewValidator()

	v.OneOf("field", "invalid", []string{"a", "b", "c"})
	assert.True(t, v.HasErrors())

	v = NewValidator()
	v.OneOf("field", "b", []string{"a", "b", "c"})
	assert.False(t, v.HasErrors())
}

func TestValidator_Symbol(t *testing.T) {
	v := NewValidator()

	v.Symbol("field", "!")
	assert.True(t, v.HasErrors())

	v = NewValidator()
	v.Symbol("field", "BTCUSDT")
	assert.False(t, v.HasErrors())

	v = NewValidator()
	v.Symbol("field", "ETHBTC")
	assert.False(t, v.HasErrors())

	v = NewValidator()
	v.Symbol("field", "btcusdt") // lowercase should fail, caller runs SanitizeSymbol first
	assert.True(t, v.HasErrors())
}

func TestSanitizeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", SanitizeSymbol("btcusdt"))
	assert.Equal(t, "BTCUSDT", SanitizeSymbol(" BTC USDT "))
	assert.Equal(t, "BTCUSDT", SanitizeSymbol("BTC/USDT"))
}

func TestValidateTradingMode(t *testing.T) {
	assert.Error(t, ValidateTradingMode(""))
	assert.Error(t, ValidateTradingMode("INVALID"))
	assert.NoError(t, ValidateTradingMode("testnet"))
	assert.NoError(t, ValidateTradingMode("live"))
}

func TestValidationErrors(t *testing.T) {
	errors := ValidationErrors{}
	assert.False(t, errors.HasErrors())
	assert.Equal(t, "", errors.Error())

	errors = ValidationErrors{
		{Field: "field1", Message: "error1"},
	}
	assert.True(t, errors.HasErrors())
	assert.Contains(t, errors.Error(), "field1")

	errors = ValidationErrors{
		{Field: "field1", Message: "error1"},
		{Field: "field2", Message: "error2"},
	}
	assert.True(t, errors.HasErrors())
	assert.Contains(t, errors.Error(), "field1")
	assert.Contains(t, errors.Error(), "field2")
}
