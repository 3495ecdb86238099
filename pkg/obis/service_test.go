package obis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		code string
		tag  Tag
	}{
		{"1-0:1.7.0", TagPowerDelivered},
		{"1-0:2.7.0", TagPowerReturned},
		{"1-0:1.8.1", TagEnergyDeliveredLow},
		{"1-0:32.7.0", TagVoltageL1},
		{"1-0:71.7.0", TagCurrentL3},
		{"1-0:13.7.0", TagPowerFactor},
		{"0-0:96.1.1", TagMeterID},
		{"0-0:1.0.0", TagTimestamp},
		{"0-0:17.0.0", TagMaxPower},

		// No prefix or fuzzy matching
		{"1-0:1.7.00", TagNone},
		{"1-0:1.7", TagNone},
		{"1-0:1.7.0 ", TagNone},
		{"", TagNone},
		{"0-1:24.2.3", TagNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.tag, Lookup(tt.code), "code %q", tt.code)
		assert.Equal(t, tt.tag, LookupBytes([]byte(tt.code)), "code %q (bytes)", tt.code)
	}
}

func TestLookupCaseSensitive(t *testing.T) {
	// OBIS codes are digits and punctuation, but the contract is strict
	// byte equality either way.
	assert.Equal(t, TagNone, Lookup("1-0:1.7.O"))
	assert.Equal(t, TagNone, LookupBytes([]byte("0-0:96.1.1x")))
}
