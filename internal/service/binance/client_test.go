package binance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTick(t *testing.T) {
	tick, err := parseTick([]byte(`{"e":"trade","p":"85000.50","q":"0.012","T":1736000000123}`))
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, 85000.50, tick.Price)
	assert.Equal(t, 0.012, tick.Volume)
	assert.Equal(t, time.UnixMilli(1736000000123).UTC(), tick.Timestamp)
}

func TestParseTickWithoutTradeTime(t *testing.T) {
	before := time.Now().UTC()
	tick, err := parseTick([]byte(`{"p":"100","q":"1"}`))
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.False(t, tick.Timestamp.Before(before))
}

func TestParseTickNonTradeFrame(t *testing.T) {
	tick, err := parseTick([]byte(`{"result":null,"id":1}`))
	require.NoError(t, err)
	assert.Nil(t, tick)
}

func TestParseTickRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"p":`,
		"junk price":        `{"p":"abc","q":"1"}`,
		"zero price":        `{"p":"0","q":"1"}`,
		"negative price":    `{"p":"-5","q":"1"}`,
		"missing quantity":  `{"p":"100"}`,
		"negative quantity": `{"p":"100","q":"-1"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseTick([]byte(payload))
			assert.Error(t, err)
		})
	}
}
