// Gateway API is responsible for reading the P1 port and broadcasting the readings.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stroomlezer/dsmr_gateway/pkg/config"
	"github.com/stroomlezer/dsmr_gateway/pkg/port_reader"
	"github.com/stroomlezer/dsmr_gateway/pkg/raw_server"
	"github.com/stroomlezer/dsmr_gateway/pkg/solarinverter"
	"github.com/stroomlezer/dsmr_gateway/pkg/telegram"
)

var p1Reader *port_reader.P1Reader

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// ws clients for broadcasting live readings
var (
	wsClients                   = make(map[*websocket.Conn]bool)
	wsClientsMutex sync.RWMutex = sync.RWMutex{}
)

func main() {
	// Load config
	if err := config.LoadGatewayAPIConfig(); err != nil {
		log.Fatalf("Failed to load gateway API config: %v", err)
	}
	cfg := config.ActiveGatewayAPIConfig

	// Start P1 reader in the configured source mode
	switch cfg.SourceMode {
	case port_reader.SourceTCP:
		p1Reader = port_reader.NewP1ReaderTCP(cfg.TCPSourceAddress)
	default:
		p1Reader = port_reader.NewP1Reader(cfg.SerialDevice, cfg.Baudrate)
	}

	// Raw telegram fan-out. The tap sees every byte before parsing, so
	// clients get the stream even when telegrams fail validation.
	if cfg.RawListenPort != 0 {
		rawSrv := raw_server.NewRawServer()
		rawAddr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.RawListenPort)
		if err := rawSrv.Listen(rawAddr); err != nil {
			log.Fatalf("Failed to start raw fan-out listener: %v", err)
		}
		p1Reader.SetRawTap(rawSrv.Broadcast)
	}

	// Start reading P1 port and handle signals/errors
	p1Reader.StartReading(
		func(reading *telegram.Telegram) {
			BroadcastToWebSockets(reading)
		},
		func(err error) {
			if err != nil {
				log.Fatalf("Error reading P1 port: %v", err)
			}
		},
	)

	// Setup HTTP handlers
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]string{
			"message": "DSMR Gateway API",
			"status":  "running",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	http.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		reading := p1Reader.GetLatestReading()
		w.Header().Set("Content-Type", "application/json")
		if reading == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "No readings available yet",
			})
			return
		}

		json.NewEncoder(w).Encode(reading)
	})

	// Freshness signal for external watchdogs: seconds since the last
	// validated frame.
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		last := p1Reader.LastFrameTime()
		if last.IsZero() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "no validated frame yet",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]float64{
			"seconds_since_last_frame": time.Since(last).Seconds(),
		})
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		AddWebSocketClient(conn)

		// Send current reading immediately if available
		if reading := p1Reader.GetLatestReading(); reading != nil {
			conn.WriteMessage(websocket.TextMessage, reading.ToJsonBytes())
		}

		// Keep connection alive
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				RemoveWebSocketClient(conn)
				break
			}
		}
	})

	// May be fast or slow depending on cached response from inverter.
	http.HandleFunc("/solar", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		power, err := solarinverter.ReadSolarData()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error": err.Error(),
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]int32{
			"currentProduction": power,
		})
	})

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)

	log.Printf("Starting DSMR Gateway API on %s", listener)
	log.Fatal(http.ListenAndServe(listener, nil))
}

func BroadcastToWebSockets(reading *telegram.Telegram) {
	wsClientsMutex.RLock()
	clients := make([]*websocket.Conn, 0, len(wsClients))
	for client := range wsClients {
		clients = append(clients, client)
	}
	wsClientsMutex.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, reading.ToJsonBytes()); err != nil {
			RemoveWebSocketClient(client)
		}
	}
}

func AddWebSocketClient(conn *websocket.Conn) {
	wsClientsMutex.Lock()
	wsClients[conn] = true
	wsClientsMutex.Unlock()
}

func RemoveWebSocketClient(conn *websocket.Conn) {
	wsClientsMutex.Lock()
	delete(wsClients, conn)
	wsClientsMutex.Unlock()
	conn.Close()
}
