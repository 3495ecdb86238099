// Responsible for storing the data collected from the smart meter
// Depends on the gateway API being online.
package main

import (
	"log"
	"time"

	"github.com/stroomlezer/dsmr_gateway/pkg/aggregator"
	"github.com/stroomlezer/dsmr_gateway/pkg/config"
	"github.com/stroomlezer/dsmr_gateway/pkg/feed"
	"github.com/stroomlezer/dsmr_gateway/pkg/meterdb"
	"github.com/stroomlezer/dsmr_gateway/pkg/telegram"
)

// Energy standings advance once a minute at most; storing every frame
// would only repeat them.
const energyStoreInterval = time.Minute

var lastEnergyStore time.Time

func main() {
	// Load config
	if err := config.LoadMeterCollectorConfig(); err != nil {
		log.Fatalf("Failed to load meter collector config: %v", err)
	}
	cfg := config.ActiveMeterCollectorConfig

	// Initialize database
	meterdb.InitializeDatabase()

	// Hourly aggregation and retention cleanup
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := aggregator.AggregateAndCleanup(); err != nil {
				log.Printf("Aggregation failed: %v", err)
			}
		}
	}()

	// Subscribe to websocket with retry
	feed.StartListener(cfg.GatewayAPIHost, cfg.TLSEnabled, handleMeterReading)
}

// Handle meter reading data
func handleMeterReading(reading *telegram.Telegram) {
	now := time.Now().UTC()

	err := meterdb.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{
		Timestamp:    now.Unix(),
		DeliveredUkw: int64(reading.PowerDelivered),
		ReturnedUkw:  int64(reading.PowerReturned),
		PowerFactor:  int64(reading.PowerFactor),
	})
	if err != nil {
		log.Printf("Failed to store live power reading: %v", err)
	}

	if now.Sub(lastEnergyStore) < energyStoreInterval {
		return
	}
	err = meterdb.InsertTotalEnergyReading(&meterdb.MeterDbTotalEnergyReading{
		Timestamp:         now.Unix(),
		DeliveredLowUkwh:  reading.EnergyDeliveredLow,
		DeliveredHighUkwh: reading.EnergyDeliveredHigh,
		ReturnedLowUkwh:   reading.EnergyReturnedLow,
		ReturnedHighUkwh:  reading.EnergyReturnedHigh,
	})
	if err != nil {
		log.Printf("Failed to store energy standings: %v", err)
		return
	}
	lastEnergyStore = now
}
