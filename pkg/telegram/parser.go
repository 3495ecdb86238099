// Package telegram implements a streaming DSMR P1 telegram parser.
//
// The parser consumes the port byte stream one byte at a time, detects
// frame boundaries on the '/' and '!' sentinels, tokenizes lines into
// OBIS code and value, converts values to fixed-point integers and
// validates each frame with the DSMR CRC16. It buffers at most one line
// of input and reuses all of its buffers across frames, so it can keep
// up with the serial line indefinitely.
package telegram

import (
	"bytes"
	"encoding/hex"

	"github.com/sigurn/crc16"

	"github.com/stroomlezer/dsmr_gateway/pkg/fixedpoint"
	"github.com/stroomlezer/dsmr_gateway/pkg/obis"
)

// lineBufferCap bounds a single telegram line. Longer lines are
// truncated; the tail bytes still count toward the checksum but are
// dropped from the line content. Accepted lossy behavior for malformed
// input.
const lineBufferCap = 80

// Event is the outcome of feeding one byte.
type Event uint8

const (
	// EventNone: byte consumed, nothing to report.
	EventNone Event = iota
	// EventFrame: byte consumed and a checksum-validated frame is now
	// available in the parser's record. The caller must copy the record
	// out before feeding further bytes of the next frame.
	EventFrame
)

// CRC16/ARC: reflected polynomial 0xA001, init 0. This is the checksum
// DSMR telegrams carry after the '!' terminator.
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Parser is the telegram state machine. Construct one per byte source
// with NewParser and keep feeding it; it reinitializes itself at every
// frame boundary and never allocates after construction.
//
// The parser owns its line buffer and CRC accumulator exclusively and
// writes into the caller-supplied record. Do not read that record while
// bytes are being fed, except immediately after Feed returned
// EventFrame.
type Parser struct {
	rec *Telegram

	line    [lineBufferCap]byte
	lineLen int

	inFrame   bool
	crc       uint16
	crcClosed bool

	one [1]byte // scratch for per-byte CRC updates
}

// NewParser returns a parser writing into rec. The record is reset at
// the start of every frame, not at construction.
func NewParser(rec *Telegram) *Parser {
	return &Parser{rec: rec}
}

// Feed consumes a single byte and reports whether it completed a frame.
// Feed never fails: malformed lines are dropped, checksum mismatches
// discard the frame silently and overlong lines are truncated. The
// parser recovers on the next frame start either way.
func (p *Parser) Feed(b byte) Event {
	if !p.inFrame {
		// Pre-frame noise is discarded. A telegram starts at '/', but
		// joining mid-stream on an uppercase letter or digit is allowed
		// too; such a partial frame simply fails its checksum.
		if b == '/' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') {
			p.startFrame(b)
		}
		return EventNone
	}

	if b == '/' {
		// Frame start while mid-frame: the previous transmission was
		// interrupted. Abandon the partial frame and resync.
		p.startFrame(b)
		return EventNone
	}

	if !p.crcClosed {
		p.crc = p.crcUpdate(b)
		if b == '!' {
			// The checksum covers everything up to and including the
			// terminator; the trailing hex digits are excluded.
			p.crcClosed = true
		}
	}

	switch b {
	case '\n':
		done := p.dispatchLine(p.line[:p.lineLen])
		p.lineLen = 0
		if done {
			p.inFrame = false
			if p.rec.FrameComplete {
				return EventFrame
			}
		}
	case '\r':
		// CR is part of the transmitted (and hashed) bytes but never of
		// the line content.
	default:
		if p.lineLen < lineBufferCap {
			p.line[p.lineLen] = b
			p.lineLen++
		}
	}
	return EventNone
}

func (p *Parser) startFrame(b byte) {
	p.rec.Reset()
	p.inFrame = true
	p.crcClosed = false
	p.crc = crc16.Init(crcTable)
	p.crc = p.crcUpdate(b)
	p.line[0] = b
	p.lineLen = 1
}

func (p *Parser) crcUpdate(b byte) uint16 {
	p.one[0] = b
	return crc16.Update(p.crc, p.one[:], crcTable)
}

// dispatchLine classifies one completed line. Returns true when the
// line terminated the frame.
func (p *Parser) dispatchLine(line []byte) bool {
	if len(line) == 0 {
		return false
	}

	if line[0] == '!' {
		p.finishFrame(line)
		return true
	}

	// Identification line: starts with '/' or an uppercase letter and
	// carries no OBIS code.
	if (line[0] == '/' || (line[0] >= 'A' && line[0] <= 'Z')) && bytes.IndexByte(line, ':') < 0 {
		id := line
		if id[0] == '/' {
			id = id[1:]
		}
		p.rec.EquipmentID = truncate(string(id), EquipmentIDMax)
		return false
	}

	p.dispatchData(line)
	return false
}

// finishFrame validates the terminator line. Meters that omit the
// checksum entirely (bare '!') get their frames accepted
// unconditionally; anything else must carry four hex digits matching
// the accumulated CRC or the frame is silently discarded.
func (p *Parser) finishFrame(line []byte) {
	if len(line) == 1 {
		p.rec.FrameComplete = true
	} else if sent, ok := parseHex16(line[1:]); ok && sent == crc16.Complete(p.crc, crcTable) {
		p.rec.FrameComplete = true
	}
	if p.rec.FrameComplete && !p.rec.HasPowerFactor {
		p.rec.estimatePowerFactor()
	}
}

func (p *Parser) dispatchData(line []byte) {
	paren := bytes.IndexByte(line, '(')
	if paren < 0 {
		return
	}
	tag := obis.LookupBytes(line[:paren])
	if tag == obis.TagNone {
		// Not an error: plenty of DSMR lines are vendor extensions we
		// have no use for.
		return
	}
	val, ok := extractValue(line[paren:])
	if !ok {
		return
	}
	p.store(tag, val)
}

// store converts a value at the scale of its field and writes it into
// the record. Scales: 2 decimals for voltage, 3 for current, full micro
// precision for everything else. Power factors are dimensionless
// fractions and land at x10000.
func (p *Parser) store(tag obis.Tag, val []byte) {
	rec := p.rec
	switch tag {
	case obis.TagEnergyDeliveredLow:
		rec.EnergyDeliveredLow = uint64(fixedpoint.ParseMicro(val))
	case obis.TagEnergyDeliveredHigh:
		rec.EnergyDeliveredHigh = uint64(fixedpoint.ParseMicro(val))
	case obis.TagEnergyReturnedLow:
		rec.EnergyReturnedLow = uint64(fixedpoint.ParseMicro(val))
	case obis.TagEnergyReturnedHigh:
		rec.EnergyReturnedHigh = uint64(fixedpoint.ParseMicro(val))

	case obis.TagPowerDelivered:
		rec.PowerDelivered = int32(fixedpoint.ParseMicro(val))
	case obis.TagPowerReturned:
		rec.PowerReturned = int32(fixedpoint.ParseMicro(val))
	case obis.TagPowerDeliveredL1:
		rec.PowerDeliveredL1 = int32(fixedpoint.ParseMicro(val))
	case obis.TagPowerDeliveredL2:
		rec.PowerDeliveredL2 = int32(fixedpoint.ParseMicro(val))
		rec.ThreePhase = true
	case obis.TagPowerDeliveredL3:
		rec.PowerDeliveredL3 = int32(fixedpoint.ParseMicro(val))
		rec.ThreePhase = true
	case obis.TagPowerReturnedL1:
		rec.PowerReturnedL1 = int32(fixedpoint.ParseMicro(val))
	case obis.TagPowerReturnedL2:
		rec.PowerReturnedL2 = int32(fixedpoint.ParseMicro(val))
		rec.ThreePhase = true
	case obis.TagPowerReturnedL3:
		rec.PowerReturnedL3 = int32(fixedpoint.ParseMicro(val))
		rec.ThreePhase = true

	case obis.TagVoltageL1:
		rec.VoltageL1 = int16(fixedpoint.Parse(val, 2))
	case obis.TagVoltageL2:
		rec.VoltageL2 = int16(fixedpoint.Parse(val, 2))
		rec.ThreePhase = true
	case obis.TagVoltageL3:
		rec.VoltageL3 = int16(fixedpoint.Parse(val, 2))
		rec.ThreePhase = true
	case obis.TagCurrentL1:
		rec.CurrentL1 = int16(fixedpoint.Parse(val, 3))
	case obis.TagCurrentL2:
		rec.CurrentL2 = int16(fixedpoint.Parse(val, 3))
		rec.ThreePhase = true
	case obis.TagCurrentL3:
		rec.CurrentL3 = int16(fixedpoint.Parse(val, 3))
		rec.ThreePhase = true

	case obis.TagPowerFactor:
		rec.PowerFactor = int32(fixedpoint.ParseMicro(val) / 100)
		rec.HasPowerFactor = true
	case obis.TagPowerFactorL1:
		rec.PowerFactorL1 = int32(fixedpoint.ParseMicro(val) / 100)
		rec.HasPowerFactor = true
	case obis.TagPowerFactorL2:
		rec.PowerFactorL2 = int32(fixedpoint.ParseMicro(val) / 100)
		rec.HasPowerFactor = true
	case obis.TagPowerFactorL3:
		rec.PowerFactorL3 = int32(fixedpoint.ParseMicro(val) / 100)
		rec.HasPowerFactor = true

	case obis.TagMeterID:
		rec.MeterID = decodeMeterID(val)
	case obis.TagTimestamp:
		rec.Timestamp = truncate(string(val), TimestampMax)
	case obis.TagMaxPower:
		rec.MaxPower = int32(fixedpoint.ParseMicro(val))
	}
}

// decodeMeterID handles the hex-encoded serial numbers Belgian and
// Dutch meters emit on 0-0:96.1.1. Values that do not decode cleanly
// are stored as-is.
func decodeMeterID(val []byte) string {
	if decoded, err := hex.DecodeString(string(val)); err == nil && len(decoded) > 0 {
		return truncate(string(decoded), MeterIDMax)
	}
	return truncate(string(val), MeterIDMax)
}
