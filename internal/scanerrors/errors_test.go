package scanerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKindAndRejectsOthers(t *testing.T) {
	err := ConsistencyError("op", "duplicate signature", nil)
	assert.True(t, Is(err, KindConsistency))
	assert.False(t, Is(err, KindFatal))
	assert.False(t, Is(errors.New("plain"), KindConsistency))
}

func TestUnwrapExposesWrappedCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := TransientNetworkError("fetch_klines", "exchange unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStopsScannerOnlyForConfigAndFatal(t *testing.T) {
	assert.True(t, StopsScanner(KindConfig))
	assert.True(t, StopsScanner(KindFatal))
	assert.False(t, StopsScanner(KindTransientNetwork))
	assert.False(t, StopsScanner(KindExchangeRejection))
	assert.False(t, StopsScanner(KindConsistency))
	assert.False(t, StopsScanner(KindLeadershipLost))
}
