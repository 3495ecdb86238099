package aggregator

import "github.com/stroomlezer/dsmr_gateway/pkg/meterdb"

type Timeframe uint8

const (
	TimeframeHourly Timeframe = iota
	TimeframeDaily
	TimeframeMonthly
)

type AggregateData struct {
	Timeframe          Timeframe
	EndTime            int64
	IsInDb             bool
	IsCurrentTimeframe bool
	Aggregate          meterdb.AggregateLivePowerTable
}
