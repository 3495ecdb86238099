package obis

// Tag identifies a measured quantity referenced by an OBIS code.
type Tag uint8

const (
	TagNone Tag = iota

	// Cumulative energy counters
	TagEnergyDeliveredLow
	TagEnergyDeliveredHigh
	TagEnergyReturnedLow
	TagEnergyReturnedHigh

	// Instantaneous power
	TagPowerDelivered
	TagPowerReturned
	TagPowerDeliveredL1
	TagPowerDeliveredL2
	TagPowerDeliveredL3
	TagPowerReturnedL1
	TagPowerReturnedL2
	TagPowerReturnedL3

	// Per-phase voltage and current
	TagVoltageL1
	TagVoltageL2
	TagVoltageL3
	TagCurrentL1
	TagCurrentL2
	TagCurrentL3

	// Power factor
	TagPowerFactor
	TagPowerFactorL1
	TagPowerFactorL2
	TagPowerFactorL3

	// Administrative
	TagMeterID
	TagTimestamp
	TagMaxPower
)
