package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
)

// ToneWAV returns a mono 16-bit PCM WAV file holding a sine tone.
func ToneWAV(seconds float64, sampleRate int, freq float64) []byte {
	samples := int(seconds * float64(sampleRate))
	dataSize := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < samples; i++ {
		v := math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
		_ = binary.Write(&buf, binary.LittleEndian, int16(v*0.3*math.MaxInt16))
	}
	return buf.Bytes()
}
