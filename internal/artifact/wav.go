package artifact

import (
	"encoding/binary"
	"time"
)

// HeaderSize is the size of the canonical PCM WAV header written before sample data.
const HeaderSize = 44

const bitsPerSample = 16

func wavHeader(sampleRate, channels int, dataSize uint32) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	h := make([]byte, HeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1)
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

// pcmDuration converts a byte count of 16-bit PCM into playback time.
func pcmDuration(bytes int64, sampleRate, channels int) time.Duration {
	bytesPerSecond := int64(sampleRate * channels * bitsPerSample / 8)
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bytesPerSecond)
}
