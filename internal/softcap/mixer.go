package softcap

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/desertthunder/compuse/internal/capture"
)

// Mixer sums a microphone and a system stream through independent gain stages.
type Mixer struct {
	mu     sync.Mutex
	gains  capture.Gains
	mic    io.Reader
	system io.Reader
	micEOF bool
	sysEOF bool
	out    *Stream

	micBuf []byte
	sysBuf []byte
}

// NewMixer mixes mic and system, which must share a format.
func NewMixer(mic, system *Stream, gains capture.Gains) (*Mixer, error) {
	if mic.Format() != system.Format() {
		return nil, fmt.Errorf("%w: mixer inputs differ (%+v, %+v)", ErrUnsupportedFormat, mic.Format(), system.Format())
	}

	m := &Mixer{gains: gains, mic: mic, system: system}
	m.out = &Stream{format: mic.Format(), src: readerFunc(m.read)}
	m.out.audio = []*Track{{kind: capture.AudioTrack, onStop: m.out.trackStopped}}
	return m, nil
}

func (m *Mixer) Output() capture.Stream { return m.out }

// SetGain changes the gain of one input for subsequent reads.
func (m *Mixer) SetGain(src capture.Source, gain float64) error {
	if gain < 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return fmt.Errorf("%w: %v", capture.ErrInvalidGain, gain)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch src {
	case capture.MicSource:
		m.gains.Mic = gain
	case capture.SystemSource:
		m.gains.System = gain
	default:
		return fmt.Errorf("unknown mixer source %d", src)
	}
	return nil
}

// Close stops the output. The inputs stay with their owner.
func (m *Mixer) Close() error {
	m.out.Stop()
	return nil
}

func (m *Mixer) read(p []byte) (int, error) {
	frame := m.out.format.FrameSize()
	size := len(p) - len(p)%frame
	if size == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.micBuf = grow(m.micBuf, size)
	m.sysBuf = grow(m.sysBuf, size)
	nm := fill(m.mic, m.micBuf, &m.micEOF)
	ns := fill(m.system, m.sysBuf, &m.sysEOF)

	n := max(nm, ns)
	n -= n % frame
	if n == 0 {
		if m.micEOF && m.sysEOF {
			return 0, io.EOF
		}
		return 0, nil
	}

	Mix(p[:n], m.micBuf[:n], m.sysBuf[:n], m.gains)
	return n, nil
}

// Mix writes gain-weighted sums of two s16le buffers of equal length into dst, clamping to int16.
func Mix(dst, a, b []byte, gains capture.Gains) {
	for i := 0; i+1 < len(dst); i += 2 {
		sa := float64(int16(binary.LittleEndian.Uint16(a[i:])))
		sb := float64(int16(binary.LittleEndian.Uint16(b[i:])))
		v := math.Round(sa*gains.Mic + sb*gains.System)
		binary.LittleEndian.PutUint16(dst[i:], uint16(clamp(v)))
	}
}

func clamp(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// fill reads up to len(buf) bytes and zeroes the rest.
func fill(r io.Reader, buf []byte, eof *bool) int {
	n := 0
	if !*eof {
		var err error
		n, err = io.ReadFull(r, buf)
		if err != nil {
			*eof = true
		}
	}
	clear(buf[n:])
	return n
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

var _ capture.Mixer = (*Mixer)(nil)
