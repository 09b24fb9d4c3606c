package softcap

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/capture"
)

// stopSlack is added to the chunk period Stop waits for a pending read.
const stopSlack = 50 * time.Millisecond

// ErrRecorderStarted is returned when Start is called twice.
var ErrRecorderStarted = fmt.Errorf("recorder already started")

// Recorder encodes a stream as WAV, reading one chunk per chunk period so file-backed inputs play out in
// real time.
//
// The first chunk is a header with streaming sizes; [DecodeWAV] reads such files to the end.
// Reads happen on their own goroutine, so Stop returns even while an input such as stdin has no data.
type Recorder struct {
	stream     *Stream
	chunkBytes int
	interval   time.Duration
	logger     *log.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
	drained chan struct{}
	err     error
}

// NewRecorder records stream in chunks of chunkFrames frames.
func NewRecorder(stream *Stream, chunkFrames int, logger *log.Logger) *Recorder {
	f := stream.Format()
	return &Recorder{
		stream:     stream,
		chunkBytes: chunkFrames * f.FrameSize(),
		interval:   time.Duration(chunkFrames) * time.Second / time.Duration(f.SampleRate),
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		drained:    make(chan struct{}),
	}
}

func (r *Recorder) MimeType() string { return WAVMimeType }

// Start writes the header to sink and begins delivering PCM chunks from a new goroutine.
func (r *Recorder) Start(sink func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRecorderStarted
	}
	r.started = true

	sink(WAVHeader(r.stream.Format(), -1))
	go r.run(sink)
	return nil
}

// Stop ends recording. A read in flight gets one chunk period to reach the sink; after that it is
// dropped and Stop returns without waiting for the input.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.mu.Unlock()

	timer := time.NewTimer(r.interval + stopSlack)
	select {
	case <-r.done:
	case <-timer.C:
		r.logger.Warn("capture input still blocked, dropping the pending read")
	}
	timer.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return r.err
}

// Done is closed once the read goroutine has exited.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Drained is closed once the input stream has no more audio.
func (r *Recorder) Drained() <-chan struct{} {
	return r.drained
}

func (r *Recorder) run(sink func([]byte)) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	buf := make([]byte, r.chunkBytes)
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		}
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := io.ReadFull(r.stream, buf)
		if !r.deliver(sink, buf[:n]) {
			return
		}
		if err == nil {
			continue
		}

		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			r.mu.Lock()
			if !r.stopped {
				r.err = fmt.Errorf("failed to read capture stream: %w", err)
			}
			r.mu.Unlock()
			r.logger.Warn("capture stream failed", "error", err)
		}
		close(r.drained)
		<-r.stop
		return
	}
}

// deliver hands chunk to sink unless the recorder was stopped while it was being read.
func (r *Recorder) deliver(sink func([]byte), chunk []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}
	if len(chunk) > 0 {
		sink(chunk)
	}
	return true
}

var _ capture.Recorder = (*Recorder)(nil)
