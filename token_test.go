package hindsight_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/hindsight"
)

func TestParseTimeToken(t *testing.T) {
	// 17 digit tokens exceed float64 precision; parsing must be exact
	token, err := hindsight.ParseTimeToken("15807000000000001")
	assert.NoError(t, err)
	assert.Equal(t, "15807000000000001", token.String())

	next, err := hindsight.ParseTimeToken("15807000000000002")
	assert.NoError(t, err)
	assert.True(t, token.Before(next))
	assert.True(t, next.After(token))
}

func TestParseTimeTokenRejectsGarbage(t *testing.T) {
	_, err := hindsight.ParseTimeToken("not-a-token")
	assert.Error(t, err)

	_, err = hindsight.ParseTimeToken("15807000000000001.5")
	assert.Error(t, err)
}

func TestTokenAtRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 500, time.UTC)
	token := hindsight.TokenAt(at)
	assert.Equal(t, at, token.Time().UTC())
	assert.False(t, token.IsZero())
}

func TestTokenZero(t *testing.T) {
	var token hindsight.TimeToken
	assert.True(t, token.IsZero())
	assert.Equal(t, "0", token.String())
}
