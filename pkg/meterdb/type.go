package meterdb

// All stored quantities keep the parser's fixed-point units:
// micro-kW for power, micro-kWh for energy standings, x10000 for
// power factor. No floats anywhere in the schema.

type MeterDbLivePowerReading struct {
	Timestamp    int64 `db:"timestamp"`
	DeliveredUkw int64 `db:"delivered_ukw"`
	ReturnedUkw  int64 `db:"returned_ukw"`
	PowerFactor  int64 `db:"power_factor"`
}

type MeterDbTotalEnergyReading struct {
	Timestamp         int64  `db:"timestamp"`
	DeliveredLowUkwh  uint64 `db:"delivered_low_ukwh"`
	DeliveredHighUkwh uint64 `db:"delivered_high_ukwh"`
	ReturnedLowUkwh   uint64 `db:"returned_low_ukwh"`
	ReturnedHighUkwh  uint64 `db:"returned_high_ukwh"`
}

// Aggregate models - computed power averages per timeframe
// Use timeframe specified types instead of this directly
type AggregateLivePowerTable struct {
	StartTime       int64  `db:"start_time"`
	AvgDeliveredUkw int64  `db:"avg_delivered_ukw"`
	AvgReturnedUkw  int64  `db:"avg_returned_ukw"`
	SampleCount     uint32 `db:"sample_count"`
}

type AggregateLivePowerHourly = AggregateLivePowerTable
type AggregateLivePowerDaily = AggregateLivePowerTable
type AggregateLivePowerMonthly = AggregateLivePowerTable

// Snapshot models - retained meter standings
type SnapshotTotalEnergyHourly struct {
	Timestamp                 int64  `db:"timestamp"`
	DeliveredLowUkwhStanding  uint64 `db:"delivered_low_ukwh_standing"`
	DeliveredHighUkwhStanding uint64 `db:"delivered_high_ukwh_standing"`
	ReturnedLowUkwhStanding   uint64 `db:"returned_low_ukwh_standing"`
	ReturnedHighUkwhStanding  uint64 `db:"returned_high_ukwh_standing"`
}
