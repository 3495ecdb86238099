package port_reader

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/stroomlezer/dsmr_gateway/pkg/telegram"
)

// Initialize a new P1Reader client reading from a local serial port.
func NewP1Reader(device string, baudrate uint) *P1Reader {
	r := &P1Reader{
		sourceMode: SourceSerial,
		device:     device,
		baudrate:   baudrate,
	}
	r.parser = telegram.NewParser(&r.working)
	return r
}

// NewP1ReaderTCP reads the same byte stream from a remote forwarder
// (host:port) instead of a local port.
func NewP1ReaderTCP(address string) *P1Reader {
	r := &P1Reader{
		sourceMode: SourceTCP,
		device:     address,
	}
	r.parser = telegram.NewParser(&r.working)
	return r
}

// SetRawTap installs a tap that sees every byte read from the port
// exactly once, unmodified and before parsing. Must be called before
// StartReading.
func (p *P1Reader) SetRawTap(tap RawTap) {
	p.rawTap = tap
}

// Start listening for readings. A frame arrives roughly every second.
// Runs in goroutine. handleReading() also runs in goroutine.
func (p *P1Reader) StartReading(
	handleReading func(reading *telegram.Telegram),
	handleError func(error),
) {
	p.stopSignal = false

	go func() {
		// Tolerance before we report error.
		consecutiveErrors := 0
		maxErrors := 10
		var lastError error

		// Initialize the connection
		if err := p.connect(); err != nil {
			handleError(err)
			return
		}

		buf := make([]byte, 512)
		for consecutiveErrors < maxErrors {
			// Check for Stop command
			if p.stopSignal {
				log.Println("Stop signal received, disconnecting")
				p.disconnect()
				return
			}

			n, err := p.port.Read(buf)
			if err != nil {
				consecutiveErrors++
				lastError = err
				log.Printf("Error reading P1 stream (%d/%d): %v", consecutiveErrors, maxErrors, err)
				time.Sleep(time.Second)
				continue
			}
			if n == 0 {
				continue
			}
			consecutiveErrors = 0

			chunk := buf[:n]
			if p.rawTap != nil {
				p.rawTap(chunk)
			}

			for _, b := range chunk {
				if p.parser.Feed(b) != telegram.EventFrame {
					continue
				}
				// Copy-on-complete: consumers only ever observe the
				// last known good record, never the working record.
				reading := p.working
				p.readingMutex.Lock()
				p.latestReading = &reading
				p.lastFrameTime = time.Now()
				p.readingMutex.Unlock()

				go handleReading(&reading)
			}
		}

		log.Printf("Too many consecutive errors (%d), stopping reader: %v", maxErrors, lastError)
		handleError(lastError)
		p.disconnect()
	}()
}

func (p *P1Reader) StopReading() {
	p.stopSignal = true
	p.disconnect()
}

// GetLatestReading returns the last known good reading, or nil before
// the first validated frame.
func (p *P1Reader) GetLatestReading() *telegram.Telegram {
	p.readingMutex.RLock()
	defer p.readingMutex.RUnlock()
	return p.latestReading
}

// LastFrameTime reports when the last validated frame arrived. The
// zero time means no frame yet. Watchdog input: staleness here means
// the meter or the link is gone.
func (p *P1Reader) LastFrameTime() time.Time {
	p.readingMutex.RLock()
	defer p.readingMutex.RUnlock()
	return p.lastFrameTime
}

// Open the connection to the P1 byte source.
func (p *P1Reader) connect() error {
	switch p.sourceMode {
	case SourceTCP:
		conn, err := net.DialTimeout("tcp", p.device, 10*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to remote P1 source: %w", err)
		}
		p.port = conn
		log.Printf("Connected to remote P1 source at %s", p.device)
		return nil
	default:
		options := serial.OpenOptions{
			PortName:        p.device,
			BaudRate:        p.baudrate,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
		}

		port, err := serial.Open(options)
		if err != nil {
			return fmt.Errorf("failed to open serial port: %w", err)
		}

		p.port = port
		log.Printf("Connected to P1 port on %s", p.device)
		return nil
	}
}

func (p *P1Reader) disconnect() {
	if p.port != nil {
		p.port.Close()
		log.Println("Disconnected from P1 port")
	}
}
