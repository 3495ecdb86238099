package meterdb

func InsertLivePowerReading(reading *MeterDbLivePowerReading) error {
	db := GetDB()

	_, err := db.Exec(
		"INSERT INTO live_power_readings (timestamp, delivered_ukw, returned_ukw, power_factor) "+
			"VALUES (?, ?, ?, ?)",
		reading.Timestamp,
		reading.DeliveredUkw,
		reading.ReturnedUkw,
		reading.PowerFactor,
	)
	if err != nil {
		return err
	}
	return nil
}

func InsertTotalEnergyReading(reading *MeterDbTotalEnergyReading) error {
	db := GetDB()

	_, err := db.Exec(
		"INSERT INTO total_energy_readings "+
			"(timestamp, delivered_low_ukwh, delivered_high_ukwh, returned_low_ukwh, returned_high_ukwh) "+
			"VALUES (?, ?, ?, ?, ?)",
		reading.Timestamp,
		reading.DeliveredLowUkwh,
		reading.DeliveredHighUkwh,
		reading.ReturnedLowUkwh,
		reading.ReturnedHighUkwh,
	)
	if err != nil {
		return err
	}
	return nil
}
