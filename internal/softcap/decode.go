package softcap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// ErrUnsupportedFormat is returned for audio that is neither WAV, MP3 nor FLAC.
var ErrUnsupportedFormat = fmt.Errorf("unsupported audio format")

// Source is decoded audio: a reader of interleaved s16le frames in Format.
type Source struct {
	io.Reader
	Format Format
	closer io.Closer
}

// Close releases the file behind the source, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenFile opens an audio file by extension: .wav, .mp3 and .flac are decoded, anything else is read as
// raw PCM in the raw format.
func OpenFile(path string, raw Format) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	src, err := decode(f, strings.ToLower(filepath.Ext(path)), raw)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	src.closer = f
	return src, nil
}

// Decode decodes in-memory audio by MIME type.
func Decode(data []byte, mimeType string) (*Source, error) {
	mt, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(strings.ToLower(mt)) {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return decode(bytes.NewReader(data), ".wav", Format{})
	case "audio/mpeg", "audio/mp3":
		return decode(bytes.NewReader(data), ".mp3", Format{})
	case "audio/flac", "audio/x-flac":
		return decode(bytes.NewReader(data), ".flac", Format{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
}

// MimeType guesses the MIME type of an audio file name.
func MimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return WAVMimeType
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// Extension is the file extension for a clip MIME type, the inverse of [MimeType].
func Extension(mimeType string) string {
	switch mimeType {
	case WAVMimeType, "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".bin"
	}
}

func decode(r io.Reader, ext string, raw Format) (*Source, error) {
	switch ext {
	case ".wav":
		pcm, format, err := readWAV(r)
		if err != nil {
			return nil, err
		}
		return &Source{Reader: pcm, Format: format}, nil
	case ".mp3":
		dec, err := mp3.NewDecoder(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode MP3: %w", err)
		}
		// go-mp3 always produces 16-bit stereo
		return &Source{Reader: dec, Format: Format{SampleRate: dec.SampleRate(), Channels: 2}}, nil
	case ".flac":
		stream, err := flac.New(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FLAC: %w", err)
		}
		format := Format{SampleRate: int(stream.Info.SampleRate), Channels: int(stream.Info.NChannels)}
		return &Source{
			Reader: &flacReader{stream: stream, bits: int(stream.Info.BitsPerSample), channels: format.Channels},
			Format: format,
		}, nil
	default:
		if !raw.valid() {
			return nil, fmt.Errorf("%w: raw PCM needs a sample rate and channel count", ErrUnsupportedFormat)
		}
		return &Source{Reader: r, Format: raw}, nil
	}
}

// flacReader flattens FLAC frames into s16le bytes.
type flacReader struct {
	stream   *flac.Stream
	bits     int
	channels int
	buf      []byte
}

func (r *flacReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		f, err := r.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		r.buf = r.appendFrame(make([]byte, 0, int(f.BlockSize)*r.channels*2), f)
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *flacReader) appendFrame(buf []byte, f *frame.Frame) []byte {
	shift := r.bits - 16
	for i := range int(f.BlockSize) {
		for ch := range r.channels {
			s := f.Subframes[ch].Samples[i]
			if shift > 0 {
				s >>= shift
			} else {
				s <<= -shift
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(s)))
		}
	}
	return buf
}
