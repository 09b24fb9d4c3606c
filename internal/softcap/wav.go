package softcap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	WAVMimeType  = "audio/wav"
	wavHeaderLen = 44

	// streamingSize marks RIFF and data chunk sizes that were unknown when the header was written.
	streamingSize = 0xFFFFFFFF
)

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// FrameSize returns the number of bytes in one frame.
func (f Format) FrameSize() int {
	return f.Channels * 2
}

func (f Format) valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// WAVHeader returns a canonical 44-byte PCM header.
//
// A negative dataSize writes streaming sizes for recordings whose length is unknown up front.
func WAVHeader(f Format, dataSize int) []byte {
	riffSize, chunkSize := uint32(streamingSize), uint32(streamingSize)
	if dataSize >= 0 {
		chunkSize = uint32(dataSize)
		riffSize = uint32(dataSize + wavHeaderLen - 8)
	}

	h := make([]byte, wavHeaderLen)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], riffSize)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(f.SampleRate*f.FrameSize()))
	binary.LittleEndian.PutUint16(h[32:], uint16(f.FrameSize()))
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], chunkSize)
	return h
}

// EncodeWAV wraps pcm in a WAV container.
func EncodeWAV(f Format, pcm []byte) []byte {
	return append(WAVHeader(f, len(pcm)), pcm...)
}

// DecodeWAV returns the PCM payload of a 16-bit PCM WAV file.
//
// Chunks other than "fmt " and "data" are skipped. A data size larger than the remaining bytes,
// as written by a streaming recorder, reads to the end.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupportedFormat)
	}

	var (
		format Format
		seen   bool
	)
	r := data[12:]
	for len(r) >= 8 {
		id := string(r[0:4])
		size := int(binary.LittleEndian.Uint32(r[4:8]))
		body := r[8:]
		if size < 0 || size > len(body) {
			size = len(body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 {
				return nil, Format{}, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, tag)
			}
			if bits := binary.LittleEndian.Uint16(body[14:16]); bits != 16 {
				return nil, Format{}, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, bits)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
			}
			if !format.valid() {
				return nil, Format{}, fmt.Errorf("%w: wav declares %d Hz, %d channels", ErrUnsupportedFormat, format.SampleRate, format.Channels)
			}
			seen = true
		case "data":
			if !seen {
				return nil, Format{}, fmt.Errorf("%w: data chunk before fmt", ErrUnsupportedFormat)
			}
			pcm := body[:size]
			return pcm[:len(pcm)-len(pcm)%format.FrameSize()], format, nil
		}

		// chunks are padded to even sizes
		next := size + size%2
		if next > len(body) {
			break
		}
		r = body[next:]
	}

	return nil, Format{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
}

// readWAV reads a WAV stream and returns a reader over its PCM.
func readWAV(r io.Reader) (io.Reader, Format, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Format{}, err
	}
	pcm, format, err := DecodeWAV(data)
	if err != nil {
		return nil, Format{}, err
	}
	return bytes.NewReader(pcm), format, nil
}
