package config

type MeterCollectorConfig struct {
	GatewayAPIHost string `toml:"gateway_api_host"`
	TLSEnabled     bool   `toml:"tls_enabled"`
}

type GatewayAPIConfig struct {
	// "serial" reads the P1 port directly, "tcp" consumes a remote
	// raw forwarder (another gateway's raw_listen_port).
	SourceMode       string `toml:"source_mode"`
	SerialDevice     string `toml:"serial_device"`
	Baudrate         uint   `toml:"baudrate"`
	TCPSourceAddress string `toml:"tcp_source_address"`

	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	// Port for the verbatim raw telegram stream. 0 disables it.
	RawListenPort int `toml:"raw_listen_port"`

	SolarInverterIp         string `toml:"solar_inverter_ip"`
	SolarInverterModbusPort int    `toml:"solar_inverter_modbus_port"`
}
