package aggregator

import (
	"database/sql"
	"log"
	"time"

	"github.com/stroomlezer/dsmr_gateway/pkg/meterdb"
)

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// roundToDayStart returns the Unix timestamp of the start of the day for the given time
func roundToDayStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// roundToMonthStart returns the Unix timestamp of the start of the month for the given time
func roundToMonthStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Unix()
}

// getHourEnd returns the Unix timestamp of the last second of the hour (next hour start - 1)
func getHourEnd(hourStart int64) int64 {
	return time.Unix(hourStart, 0).Add(time.Hour).Unix() - 1
}

// getDayEnd returns the Unix timestamp of the last second of the day (next day start - 1)
func getDayEnd(dayStart int64) int64 {
	return time.Unix(dayStart, 0).AddDate(0, 0, 1).Unix() - 1
}

// getMonthEnd returns the Unix timestamp of the last second of the month (next month start - 1)
func getMonthEnd(monthStart int64) int64 {
	t := time.Unix(monthStart, 0)
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC).Unix() - 1
}

// aggregateLivePower computes the average delivered/returned power over
// a window. Averages of fixed-point micro-kW values stay micro-kW, so
// the aggregate keeps the raw readings' precision.
func aggregateLivePower(table string, startColumn string, windowStart, windowEnd int64) error {
	db := meterdb.GetDB()

	query := `
		SELECT
			CAST(AVG(delivered_ukw) AS INTEGER) as avg_delivered,
			CAST(AVG(returned_ukw) AS INTEGER) as avg_returned,
			COUNT(*) as count
		FROM live_power_readings
		WHERE timestamp >= ? AND timestamp <= ?
	`

	var avgDelivered, avgReturned sql.NullInt64
	var sampleCount uint32
	err := db.QueryRow(query, windowStart, windowEnd).Scan(&avgDelivered, &avgReturned, &sampleCount)
	if err != nil {
		return err
	}

	// Only insert if we have data
	if sampleCount == 0 {
		return nil
	}

	insertQuery := `
		INSERT OR REPLACE INTO ` + table + `
		(` + startColumn + `, avg_delivered_ukw, avg_returned_ukw, sample_count)
		VALUES (?, ?, ?, ?)
	`

	_, err = db.Exec(insertQuery, windowStart, avgDelivered.Int64, avgReturned.Int64, sampleCount)
	return err
}

// aggregateLivePowerHourly aggregates live power readings for a specific hour
func aggregateLivePowerHourly(hourStart int64) error {
	return aggregateLivePower("aggregate_live_power_hourly", "hour_start", hourStart, getHourEnd(hourStart))
}

// aggregateLivePowerDaily aggregates live power readings for a specific day
func aggregateLivePowerDaily(dayStart int64) error {
	return aggregateLivePower("aggregate_live_power_daily", "day_start", dayStart, getDayEnd(dayStart))
}

// aggregateLivePowerMonthly aggregates live power readings for a specific month
func aggregateLivePowerMonthly(monthStart int64) error {
	return aggregateLivePower("aggregate_live_power_monthly", "month_start", monthStart, getMonthEnd(monthStart))
}

// snapshotTotalEnergyHourly retains the last known meter standings for a specific hour
func snapshotTotalEnergyHourly(hourStart int64) error {
	db := meterdb.GetDB()
	hourEnd := getHourEnd(hourStart)

	// Get the last known reading within the timespan
	query := `
		SELECT delivered_low_ukwh, delivered_high_ukwh, returned_low_ukwh, returned_high_ukwh
		FROM total_energy_readings
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var deliveredLow, deliveredHigh, returnedLow, returnedHigh uint64
	err := db.QueryRow(query, hourStart, hourEnd).Scan(&deliveredLow, &deliveredHigh, &returnedLow, &returnedHigh)
	if err != nil {
		if err == sql.ErrNoRows {
			// No entry within timeframe, that's okay
			return nil
		}
		return err
	}

	// Insert or replace the snapshot
	insertQuery := `
		INSERT OR REPLACE INTO snapshot_total_energy_hourly
		(timestamp, delivered_low_ukwh_standing, delivered_high_ukwh_standing, returned_low_ukwh_standing, returned_high_ukwh_standing)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = db.Exec(insertQuery, hourStart, deliveredLow, deliveredHigh, returnedLow, returnedHigh)
	return err
}

// cleanupOldData removes raw data older than 3 months if we have aggregated it
func cleanupOldData() error {
	db := meterdb.GetDB()

	// Calculate the cutoff timestamp (3 months ago)
	threeMonthsAgo := time.Now().UTC().AddDate(0, -3, 0)
	cutoffTimestamp := threeMonthsAgo.Unix()

	// Check if we have aggregated data up to the cutoff point
	// We check the last hourly aggregate to see if we've aggregated recent enough data
	var lastAggregateHour sql.NullInt64
	err := db.QueryRow("SELECT MAX(hour_start) FROM aggregate_live_power_hourly").Scan(&lastAggregateHour)
	if err != nil {
		if err == sql.ErrNoRows {
			// No aggregates yet, don't clean up
			return nil
		}
		return err
	}

	// Only clean up if we have aggregated data up to the cutoff point
	if !lastAggregateHour.Valid || lastAggregateHour.Int64 < cutoffTimestamp {
		// We haven't aggregated enough data yet, don't clean up
		return nil
	}

	// Delete old live power readings
	_, err = db.Exec("DELETE FROM live_power_readings WHERE timestamp < ?", cutoffTimestamp)
	if err != nil {
		return err
	}

	// Delete old total energy readings
	_, err = db.Exec("DELETE FROM total_energy_readings WHERE timestamp < ?", cutoffTimestamp)
	if err != nil {
		return err
	}

	log.Printf("Cleaned up data older than %s", threeMonthsAgo.Format(time.RFC3339))
	return nil
}

// AggregateAndCleanup performs all aggregation and cleanup tasks
// This is the main function to call for data aggregation
func AggregateAndCleanup() error {
	now := time.Now().UTC()

	// Aggregate the previous hour (current hour is still ongoing)
	previousHour := now.Add(-time.Hour)
	hourStart := roundToHourStart(previousHour)

	log.Printf("Aggregating data for hour starting at %s", time.Unix(hourStart, 0).Format(time.RFC3339))

	if err := aggregateLivePowerHourly(hourStart); err != nil {
		log.Printf("Error aggregating hourly live power: %v", err)
		return err
	}

	if err := snapshotTotalEnergyHourly(hourStart); err != nil {
		log.Printf("Error creating energy snapshot: %v", err)
		return err
	}

	// Aggregate the previous day if it's a new day
	if now.Hour() == 0 {
		previousDay := now.AddDate(0, 0, -1)
		dayStart := roundToDayStart(previousDay)

		log.Printf("Aggregating data for day starting at %s", time.Unix(dayStart, 0).Format(time.RFC3339))

		if err := aggregateLivePowerDaily(dayStart); err != nil {
			log.Printf("Error aggregating daily live power: %v", err)
			return err
		}
	}

	// Aggregate the previous month if it's a new month
	if now.Hour() == 0 && now.Day() == 1 {
		previousMonth := now.AddDate(0, -1, 0)
		monthStart := roundToMonthStart(previousMonth)

		log.Printf("Aggregating data for month starting at %s", time.Unix(monthStart, 0).Format(time.RFC3339))

		if err := aggregateLivePowerMonthly(monthStart); err != nil {
			log.Printf("Error aggregating monthly live power: %v", err)
			return err
		}
	}

	// Run cleanup
	if err := cleanupOldData(); err != nil {
		log.Printf("Error cleaning up old data: %v", err)
		return err
	}

	log.Println("Aggregation and cleanup completed successfully")
	return nil
}
