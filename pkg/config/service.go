package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/stroomlezer/dsmr_gateway/pkg/pathing"
)

var (
	ActiveGatewayAPIConfig     *GatewayAPIConfig
	ActiveMeterCollectorConfig *MeterCollectorConfig
)

func LoadGatewayAPIConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "gateway_api.toml")

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &GatewayAPIConfig{
			SourceMode:              "serial",
			SerialDevice:            "/dev/ttyUSB0",
			Baudrate:                115200,
			TCPSourceAddress:        "",
			ListenAddress:           "0.0.0.0",
			ListenPort:              9039,
			RawListenPort:           9040,
			SolarInverterIp:         "",
			SolarInverterModbusPort: 0,
		}
		// Create file
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveGatewayAPIConfig = cfg
		return nil
	}

	// Load existing config
	var config GatewayAPIConfig
	_, err := toml.DecodeFile(configPath, &config)
	if err != nil {
		return err
	}
	ActiveGatewayAPIConfig = &config
	return nil
}

func LoadMeterCollectorConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "meter_collector.toml")

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &MeterCollectorConfig{
			GatewayAPIHost: "localhost:9039",
			TLSEnabled:     false,
		}
		// Create file
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveMeterCollectorConfig = cfg
		return nil
	}

	// Load existing config
	var config MeterCollectorConfig
	_, err := toml.DecodeFile(configPath, &config)
	if err != nil {
		return err
	}
	ActiveMeterCollectorConfig = &config
	return nil
}
