package telegram

// Field capacities for the text fields. Oversized values are truncated,
// never overrun.
const (
	MeterIDMax     = 16
	EquipmentIDMax = 32
	TimestampMax   = 13
)

// Telegram is the decoded output of one complete, validated DSMR frame.
//
// All numeric fields are fixed-point integers so repeated updates of the
// cumulative counters cannot accumulate rounding drift:
//
//	energy counters   micro-kWh (kWh x 1e6), unsigned 64-bit
//	power             micro-kW  (kW x 1e6), signed 32-bit
//	voltage           centi-volt (V x 100), signed 16-bit
//	current           milli-amp (A x 1000), signed 16-bit
//	power factor      value x 10000, signed (sign = leading/lagging)
//
// A Telegram is either empty (freshly reset) or complete (FrameComplete
// set after checksum validation). The parser's working record is never
// handed to consumers mid-update; callers copy it out the moment the
// parser reports a completed frame.
type Telegram struct {
	EquipmentID string `json:"equipment_id"`
	MeterID     string `json:"meter_id"`
	Timestamp   string `json:"timestamp"`

	// Cumulative energy counters, micro-kWh
	EnergyDeliveredLow  uint64 `json:"energy_delivered_low_ukwh"`
	EnergyDeliveredHigh uint64 `json:"energy_delivered_high_ukwh"`
	EnergyReturnedLow   uint64 `json:"energy_returned_low_ukwh"`
	EnergyReturnedHigh  uint64 `json:"energy_returned_high_ukwh"`

	// Instantaneous power, micro-kW
	PowerDelivered   int32 `json:"power_delivered_ukw"`
	PowerReturned    int32 `json:"power_returned_ukw"`
	PowerDeliveredL1 int32 `json:"power_delivered_l1_ukw"`
	PowerDeliveredL2 int32 `json:"power_delivered_l2_ukw"`
	PowerDeliveredL3 int32 `json:"power_delivered_l3_ukw"`
	PowerReturnedL1  int32 `json:"power_returned_l1_ukw"`
	PowerReturnedL2  int32 `json:"power_returned_l2_ukw"`
	PowerReturnedL3  int32 `json:"power_returned_l3_ukw"`

	// Per-phase voltage (centi-volt) and current (milli-amp)
	VoltageL1 int16 `json:"voltage_l1_cv"`
	VoltageL2 int16 `json:"voltage_l2_cv"`
	VoltageL3 int16 `json:"voltage_l3_cv"`
	CurrentL1 int16 `json:"current_l1_ma"`
	CurrentL2 int16 `json:"current_l2_ma"`
	CurrentL3 int16 `json:"current_l3_ma"`

	// Power factor, x10000
	PowerFactor   int32 `json:"power_factor"`
	PowerFactorL1 int32 `json:"power_factor_l1"`
	PowerFactorL2 int32 `json:"power_factor_l2"`
	PowerFactorL3 int32 `json:"power_factor_l3"`

	// Contracted power limit, micro-kW
	MaxPower int32 `json:"max_power_ukw"`

	ThreePhase     bool `json:"three_phase"`
	HasPowerFactor bool `json:"has_power_factor"`
	FrameComplete  bool `json:"frame_complete"`
}

// Reset returns the record to its empty state in place. The record is
// reused for the lifetime of the parser, there is no alloc/free cycle.
func (t *Telegram) Reset() {
	*t = Telegram{}
}

// estimatePowerFactor fills in a best-effort total power factor when the
// meter did not supply one. It compares L1 voltage x L1 current against
// the net active power and takes the net flow direction as the sign.
// This is a single-phase heuristic carried over from the original meter
// firmware; treat it as an estimate, not a certified measurement.
func (t *Telegram) estimatePowerFactor() {
	// cV * mA = 1e-5 VA steps; power fields are 1e-6 kW = 1e-3 W steps.
	apparent := int64(t.VoltageL1) * int64(t.CurrentL1)
	if apparent == 0 {
		return
	}
	net := int64(t.PowerDelivered) - int64(t.PowerReturned)
	pf := net * 1000000 / apparent
	if pf > 10000 {
		pf = 10000
	} else if pf < -10000 {
		pf = -10000
	}
	t.PowerFactor = int32(pf)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
