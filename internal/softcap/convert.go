package softcap

import (
	"encoding/binary"
	"io"
)

// Convert adapts s16le PCM in one format to another.
//
// Channels are duplicated or averaged and the rate is changed by nearest-frame selection,
// which is adequate for monitoring and previews.
func Convert(r io.Reader, from, to Format) io.Reader {
	if from == to {
		return r
	}
	return &converter{src: r, from: from, to: to, in: make([]byte, from.FrameSize())}
}

type converter struct {
	src  io.Reader
	from Format
	to   Format
	in   []byte
	// pos counts output frames; consumed counts input frames read so far.
	pos      int64
	consumed int64
	frame    []int16
	pending  []byte
	err      error
}

func (c *converter) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(c.pending) > 0 {
			k := copy(p[n:], c.pending)
			c.pending = c.pending[k:]
			n += k
			continue
		}
		if c.err != nil {
			break
		}
		c.next()
	}

	if n == 0 && c.err != nil {
		return 0, c.err
	}
	return n, nil
}

// next produces one output frame into pending.
func (c *converter) next() {
	want := c.pos*int64(c.from.SampleRate)/int64(c.to.SampleRate) + 1
	for c.consumed < want {
		if _, err := io.ReadFull(c.src, c.in); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			c.err = err
			return
		}
		c.consumed++
		c.frame = decodeFrame(c.frame[:0], c.in)
	}
	c.pos++

	out := remix(c.frame, c.to.Channels)
	buf := make([]byte, 0, len(out)*2)
	for _, s := range out {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	c.pending = buf
}

func decodeFrame(dst []int16, b []byte) []int16 {
	for i := 0; i+1 < len(b); i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(b[i:])))
	}
	return dst
}

// remix maps a frame onto n channels.
func remix(frame []int16, n int) []int16 {
	switch {
	case len(frame) == n:
		return frame
	case n == 1:
		var sum int
		for _, s := range frame {
			sum += int(s)
		}
		return []int16{int16(sum / len(frame))}
	default:
		out := make([]int16, n)
		for i := range out {
			out[i] = frame[i%len(frame)]
		}
		return out
	}
}
