package port_reader

import (
	"io"
	"sync"
	"time"

	"github.com/stroomlezer/dsmr_gateway/pkg/telegram"
)

// Source modes for the P1 byte stream.
const (
	SourceSerial = "serial"
	SourceTCP    = "tcp"
)

// RawTap receives every chunk read from the P1 port, verbatim and
// before parsing. Used for the raw TCP fan-out and diagnostics.
type RawTap func(data []byte)

type P1Reader struct {
	sourceMode string
	device     string // serial device path or tcp host:port
	baudrate   uint

	port    io.ReadWriteCloser
	parser  *telegram.Parser
	working telegram.Telegram

	latestReading *telegram.Telegram
	lastFrameTime time.Time
	readingMutex  sync.RWMutex

	rawTap     RawTap
	stopSignal bool
}
