// Package obis maps DSMR OBIS identifier strings to enumerated tags.
// Codes not present in the table belong to vendor extensions and are
// ignored by the parser.
package obis

type entry struct {
	code string
	tag  Tag
}

// Codes follow the DSMR 5.0 P1 companion standard.
var table = []entry{
	{"1-0:1.8.1", TagEnergyDeliveredLow},
	{"1-0:1.8.2", TagEnergyDeliveredHigh},
	{"1-0:2.8.1", TagEnergyReturnedLow},
	{"1-0:2.8.2", TagEnergyReturnedHigh},
	{"1-0:1.7.0", TagPowerDelivered},
	{"1-0:2.7.0", TagPowerReturned},
	{"1-0:21.7.0", TagPowerDeliveredL1},
	{"1-0:41.7.0", TagPowerDeliveredL2},
	{"1-0:61.7.0", TagPowerDeliveredL3},
	{"1-0:22.7.0", TagPowerReturnedL1},
	{"1-0:42.7.0", TagPowerReturnedL2},
	{"1-0:62.7.0", TagPowerReturnedL3},
	{"1-0:32.7.0", TagVoltageL1},
	{"1-0:52.7.0", TagVoltageL2},
	{"1-0:72.7.0", TagVoltageL3},
	{"1-0:31.7.0", TagCurrentL1},
	{"1-0:51.7.0", TagCurrentL2},
	{"1-0:71.7.0", TagCurrentL3},
	{"1-0:13.7.0", TagPowerFactor},
	{"1-0:33.7.0", TagPowerFactorL1},
	{"1-0:53.7.0", TagPowerFactorL2},
	{"1-0:73.7.0", TagPowerFactorL3},
	{"0-0:96.1.1", TagMeterID},
	{"0-0:1.0.0", TagTimestamp},
	{"0-0:17.0.0", TagMaxPower},
}

// Lookup resolves an OBIS code to its tag. Matching is exact and
// case-sensitive; unknown codes return TagNone.
// Linear scan is fine here: this runs once per received line.
func Lookup(code string) Tag {
	for _, e := range table {
		if e.code == code {
			return e.tag
		}
	}
	return TagNone
}

// LookupBytes is Lookup for a raw line prefix without forcing the caller
// to build a string first.
func LookupBytes(code []byte) Tag {
	for _, e := range table {
		if len(code) != len(e.code) {
			continue
		}
		match := true
		for i := 0; i < len(code); i++ {
			if code[i] != e.code[i] {
				match = false
				break
			}
		}
		if match {
			return e.tag
		}
	}
	return TagNone
}
