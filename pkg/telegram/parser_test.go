package telegram

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sigurn/crc16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTelegram joins lines with CRLF, appends the terminator and the
// correct CRC16 over everything up to and including '!'.
func buildTelegram(lines ...string) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteString("\r\n")
	}
	buf.WriteByte('!')
	sum := crc16.Checksum(buf.Bytes(), crcTable)
	fmt.Fprintf(&buf, "%04X", sum)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// feedAll feeds every byte and returns the offsets at which the parser
// reported a completed frame.
func feedAll(p *Parser, data []byte) []int {
	var frames []int
	for i := 0; i < len(data); i++ {
		if p.Feed(data[i]) == EventFrame {
			frames = append(frames, i)
		}
	}
	return frames
}

func TestEndToEnd(t *testing.T) {
	data := buildTelegram(
		`/ISk5\2MT382-1000`,
		`1-0:1.7.0(00.424*kW)`,
		`1-0:2.7.0(00.000*kW)`,
	)

	var rec Telegram
	p := NewParser(&rec)
	frames := feedAll(p, data)

	// Frame ready exactly once, after the final newline.
	require.Equal(t, []int{len(data) - 1}, frames)
	assert.True(t, rec.FrameComplete)
	assert.Equal(t, `ISk5\2MT382-1000`, rec.EquipmentID)
	assert.Equal(t, int32(424000), rec.PowerDelivered)
	assert.Equal(t, int32(0), rec.PowerReturned)
	assert.False(t, rec.ThreePhase)
}

func TestChecksumMismatch(t *testing.T) {
	data := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	// Corrupt the transmitted checksum, not the body.
	data[len(data)-3] ^= 0x01

	var rec Telegram
	p := NewParser(&rec)
	frames := feedAll(p, data)

	assert.Empty(t, frames)
	assert.False(t, rec.FrameComplete)
}

// A terminator with trailing bytes that do not form four hex digits is
// not the same as a missing checksum and must be rejected.
func TestChecksumGarbledTextRejected(t *testing.T) {
	data := []byte("/ISk5\\2MT382-1000\r\n1-0:1.7.0(00.424*kW)\r\n!ZZZZ\r\n")

	var rec Telegram
	p := NewParser(&rec)

	assert.Empty(t, feedAll(p, data))
	assert.False(t, rec.FrameComplete)
}

// Flipping any single bit in the telegram body must fail validation.
func TestChecksumBitFlip(t *testing.T) {
	data := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	bodyLen := bytes.IndexByte(data, '!') + 1

	for i := 1; i < bodyLen; i++ { // keep the leading '/' so a frame starts at all
		corrupted := bytes.Clone(data)
		corrupted[i] ^= 0x01

		var rec Telegram
		p := NewParser(&rec)
		frames := feedAll(p, corrupted)

		assert.Empty(t, frames, "bit flip at offset %d must not produce a frame", i)
		assert.False(t, rec.FrameComplete, "bit flip at offset %d", i)
	}
}

// After a completed frame, success or failure, the next telegram must
// decode exactly as it would on a freshly constructed parser.
func TestIdempotentReset(t *testing.T) {
	good := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	bad := bytes.Clone(good)
	bad[len(bad)-3] ^= 0x01

	var fresh Telegram
	feedAll(NewParser(&fresh), good)

	var rec Telegram
	p := NewParser(&rec)

	// good, good again
	require.Len(t, feedAll(p, good), 1)
	require.Len(t, feedAll(p, good), 1)
	assert.Equal(t, fresh, rec)

	// failed checksum, then good
	require.Empty(t, feedAll(p, bad))
	require.Len(t, feedAll(p, good), 1)
	assert.Equal(t, fresh, rec)
}

// A line far beyond the buffer capacity is truncated, never corrupts
// neighbouring state, and the parser recovers on the next telegram.
func TestLineTruncationSafety(t *testing.T) {
	var rec Telegram
	p := NewParser(&rec)

	var noise bytes.Buffer
	noise.WriteByte('/')
	for i := 0; i < 200; i++ {
		noise.WriteByte('A')
	}
	noise.WriteString("\r\n")
	require.Empty(t, feedAll(p, noise.Bytes()))

	good := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	require.Len(t, feedAll(p, good), 1)
	assert.True(t, rec.FrameComplete)
	assert.Equal(t, int32(424000), rec.PowerDelivered)
	assert.Equal(t, `ISk5\2MT382-1000`, rec.EquipmentID)
}

// A '/' while mid-frame abandons the partial frame and starts over.
func TestResyncOnFrameStart(t *testing.T) {
	var rec Telegram
	p := NewParser(&rec)

	partial := []byte("/FLX5\r\n1-0:1.7.0(99.9")
	require.Empty(t, feedAll(p, partial))

	good := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	frames := feedAll(p, good)
	require.Len(t, frames, 1)
	assert.Equal(t, int32(424000), rec.PowerDelivered)
	assert.Equal(t, `ISk5\2MT382-1000`, rec.EquipmentID)
}

// Some non-conforming meters end frames with a bare '!'. Those frames
// are accepted without validation.
func TestTerminatorWithoutChecksum(t *testing.T) {
	data := []byte("/ISk5\\2MT382-1000\r\n1-0:1.7.0(00.424*kW)\r\n!\r\n")

	var rec Telegram
	p := NewParser(&rec)
	frames := feedAll(p, data)

	require.Len(t, frames, 1)
	assert.True(t, rec.FrameComplete)
	assert.Equal(t, int32(424000), rec.PowerDelivered)
}

func TestPreFrameNoiseDiscarded(t *testing.T) {
	var rec Telegram
	p := NewParser(&rec)

	require.Empty(t, feedAll(p, []byte("\x00\xff \r\n~#")))

	good := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	require.Len(t, feedAll(p, good), 1)
}

func TestThreePhaseTelegram(t *testing.T) {
	data := buildTelegram(
		`/FLU5\253769484_A`,
		`0-0:1.0.0(210314154512W)`,
		`0-0:96.1.1(45303034)`,
		`1-0:1.8.1(001234.567*kWh)`,
		`1-0:1.8.2(004321.001*kWh)`,
		`1-0:2.8.1(000050.123*kWh)`,
		`1-0:2.8.2(000075.000*kWh)`,
		`1-0:1.7.0(01.500*kW)`,
		`1-0:2.7.0(00.000*kW)`,
		`1-0:21.7.0(00.500*kW)`,
		`1-0:41.7.0(00.400*kW)`,
		`1-0:61.7.0(00.600*kW)`,
		`1-0:22.7.0(00.000*kW)`,
		`1-0:42.7.0(00.000*kW)`,
		`1-0:62.7.0(00.000*kW)`,
		`1-0:32.7.0(229.5*V)`,
		`1-0:52.7.0(231.2*V)`,
		`1-0:72.7.0(228.0*V)`,
		`1-0:31.7.0(002.210*A)`,
		`1-0:51.7.0(001.750*A)`,
		`1-0:71.7.0(002.640*A)`,
		`1-0:13.7.0(0.950)`,
		`1-0:33.7.0(0.960)`,
		`1-0:53.7.0(0.940)`,
		`1-0:73.7.0(-0.930)`,
		`0-0:17.0.0(90.000*kW)`,
		`0-1:24.2.3(210314154510W)(00123.456*m3)`, // gas, not in the table, ignored
	)

	var rec Telegram
	p := NewParser(&rec)
	require.Len(t, feedAll(p, data), 1)

	assert.Equal(t, `FLU5\253769484_A`, rec.EquipmentID)
	assert.Equal(t, "210314154512W", rec.Timestamp)
	assert.Equal(t, "E004", rec.MeterID) // hex-decoded serial

	assert.Equal(t, uint64(1234567000), rec.EnergyDeliveredLow)
	assert.Equal(t, uint64(4321001000), rec.EnergyDeliveredHigh)
	assert.Equal(t, uint64(50123000), rec.EnergyReturnedLow)
	assert.Equal(t, uint64(75000000), rec.EnergyReturnedHigh)

	assert.Equal(t, int32(1500000), rec.PowerDelivered)
	assert.Equal(t, int32(500000), rec.PowerDeliveredL1)
	assert.Equal(t, int32(400000), rec.PowerDeliveredL2)
	assert.Equal(t, int32(600000), rec.PowerDeliveredL3)

	assert.Equal(t, int16(22950), rec.VoltageL1)
	assert.Equal(t, int16(23120), rec.VoltageL2)
	assert.Equal(t, int16(22800), rec.VoltageL3)
	assert.Equal(t, int16(2210), rec.CurrentL1)
	assert.Equal(t, int16(1750), rec.CurrentL2)
	assert.Equal(t, int16(2640), rec.CurrentL3)

	assert.Equal(t, int32(9500), rec.PowerFactor)
	assert.Equal(t, int32(9600), rec.PowerFactorL1)
	assert.Equal(t, int32(9400), rec.PowerFactorL2)
	assert.Equal(t, int32(-9300), rec.PowerFactorL3)

	assert.Equal(t, int32(90000000), rec.MaxPower)
	assert.True(t, rec.ThreePhase)
	assert.True(t, rec.HasPowerFactor)
}

// Without meter-supplied power factor lines the parser fills in the L1
// estimate: |V1 x I1| vs net active power, signed by flow direction.
func TestPowerFactorEstimate(t *testing.T) {
	data := buildTelegram(
		`/ISk5\2MT382-1000`,
		`1-0:1.7.0(00.207*kW)`,
		`1-0:2.7.0(00.000*kW)`,
		`1-0:32.7.0(230.0*V)`,
		`1-0:31.7.0(001.000*A)`,
	)

	var rec Telegram
	p := NewParser(&rec)
	require.Len(t, feedAll(p, data), 1)

	// 207 W over 230 VA apparent = 0.9
	assert.Equal(t, int32(9000), rec.PowerFactor)
	assert.False(t, rec.HasPowerFactor)
}

func TestPowerFactorEstimateSignAndClamp(t *testing.T) {
	injecting := buildTelegram(
		`/ISk5\2MT382-1000`,
		`1-0:1.7.0(00.000*kW)`,
		`1-0:2.7.0(00.207*kW)`,
		`1-0:32.7.0(230.0*V)`,
		`1-0:31.7.0(001.000*A)`,
	)
	var rec Telegram
	require.Len(t, feedAll(NewParser(&rec), injecting), 1)
	assert.Equal(t, int32(-9000), rec.PowerFactor)

	// Apparent power lower than real power clamps at unity.
	overUnity := buildTelegram(
		`/ISk5\2MT382-1000`,
		`1-0:1.7.0(00.500*kW)`,
		`1-0:32.7.0(230.0*V)`,
		`1-0:31.7.0(001.000*A)`,
	)
	rec.Reset()
	require.Len(t, feedAll(NewParser(&rec), overUnity), 1)
	assert.Equal(t, int32(10000), rec.PowerFactor)

	// No voltage/current data: no estimate possible.
	noVI := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	rec.Reset()
	require.Len(t, feedAll(NewParser(&rec), noVI), 1)
	assert.Equal(t, int32(0), rec.PowerFactor)
}

// Meter-supplied power factor is never overridden by the estimate.
func TestPowerFactorMeterValueWins(t *testing.T) {
	data := buildTelegram(
		`/ISk5\2MT382-1000`,
		`1-0:1.7.0(00.207*kW)`,
		`1-0:32.7.0(230.0*V)`,
		`1-0:31.7.0(001.000*A)`,
		`1-0:13.7.0(0.850)`,
	)

	var rec Telegram
	require.Len(t, feedAll(NewParser(&rec), data), 1)
	assert.Equal(t, int32(8500), rec.PowerFactor)
	assert.True(t, rec.HasPowerFactor)
}

// Unknown codes, lines without value groups and malformed values are
// ignored without affecting the rest of the frame.
func TestIgnoredAndMalformedLines(t *testing.T) {
	data := buildTelegram(
		`/ISk5\2MT382-1000`,
		`1-3:0.2.8(50)`,              // not in the table
		`0-0:96.13.0()`,              // empty vendor text
		`1-0:99.97.0(0)(0-0:96.7.19)`, // event log, not in the table
		`no parens here`,
		`1-0:2.7.0(00.100`, // unterminated value group, no match
		`1-0:1.7.0(00.424*kW)`,
	)

	var rec Telegram
	p := NewParser(&rec)
	require.Len(t, feedAll(p, data), 1)

	assert.Equal(t, int32(424000), rec.PowerDelivered)
	assert.Equal(t, int32(0), rec.PowerReturned)
}

func TestEquipmentIDTruncated(t *testing.T) {
	longID := "/AAAABBBBCCCCDDDDEEEEFFFFGGGGHHHHIIII"
	data := buildTelegram(longID, `1-0:1.7.0(00.424*kW)`)

	var rec Telegram
	require.Len(t, feedAll(NewParser(&rec), data), 1)
	assert.Len(t, rec.EquipmentID, EquipmentIDMax)
	assert.Equal(t, longID[1:1+EquipmentIDMax], rec.EquipmentID)
}

// Two telegrams back to back on the same parser, no reconstruction.
func TestBackToBackFrames(t *testing.T) {
	first := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(00.424*kW)`)
	second := buildTelegram(`/ISk5\2MT382-1000`, `1-0:1.7.0(01.200*kW)`)

	var rec Telegram
	p := NewParser(&rec)

	require.Len(t, feedAll(p, first), 1)
	assert.Equal(t, int32(424000), rec.PowerDelivered)

	require.Len(t, feedAll(p, second), 1)
	assert.Equal(t, int32(1200000), rec.PowerDelivered)
}
