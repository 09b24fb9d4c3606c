// Package playback plays clips through the system audio output using oto.
package playback

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/softcap"
	"github.com/ebitengine/oto/v3"
)

// Fetcher loads the bytes and MIME type behind a durable clip URI.
type Fetcher func(uri string) ([]byte, string, error)

// Voice is one playing sound. *oto.Player satisfies it.
type Voice interface {
	Play()
	Pause()
	IsPlaying() bool
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

// Device creates voices reading s16le PCM in its format.
type Device interface {
	NewVoice(r io.ReadSeeker) Voice
	Format() softcap.Format
}

var (
	otoOnce   sync.Once
	otoDevice *OtoDevice
	otoErr    error
)

// OtoDevice is the process-wide oto output. oto allows a single context per process.
type OtoDevice struct {
	ctx    *oto.Context
	format softcap.Format
}

// OpenOto returns the shared oto device, creating it in format on first use.
func OpenOto(format softcap.Format) (*OtoDevice, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoDevice = &OtoDevice{ctx: ctx, format: format}
	})
	return otoDevice, otoErr
}

func (d *OtoDevice) NewVoice(r io.ReadSeeker) Voice { return d.ctx.NewPlayer(r) }
func (d *OtoDevice) Format() softcap.Format        { return d.format }

// Players implements [capture.Players] on a [Device].
type Players struct {
	device Device
	blobs  capture.Blobs
	fetch  Fetcher
	poll   time.Duration
	logger *log.Logger
}

// New creates players reading transient clips from blobs and durable ones through fetch.
func New(device Device, blobs capture.Blobs, fetch Fetcher, logger *log.Logger) *Players {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Players{device: device, blobs: blobs, fetch: fetch, poll: 50 * time.Millisecond, logger: logger}
}

// Open decodes the whole clip up front so the player can rewind.
func (p *Players) Open(uri string) (capture.Player, error) {
	data, mimeType, err := p.load(uri)
	if err != nil {
		return nil, err
	}

	src, err := softcap.Decode(data, mimeType)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	pcm, err := io.ReadAll(softcap.Convert(src, src.Format, p.device.Format()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode clip: %w", err)
	}

	voice := p.device.NewVoice(bytes.NewReader(pcm))
	p.logger.Debug("player opened", "uri", uri, "bytes", len(pcm))
	return &player{voice: voice, poll: p.poll, logger: p.logger}, nil
}

func (p *Players) load(uri string) ([]byte, string, error) {
	if p.blobs != nil {
		if data, mimeType, err := p.blobs.Open(uri); err == nil {
			return data, mimeType, nil
		}
	}
	if p.fetch == nil {
		return nil, "", fmt.Errorf("no source for clip %s", uri)
	}
	return p.fetch(uri)
}

// player watches its voice and reports the end of playback once.
type player struct {
	mu     sync.Mutex
	voice  Voice
	poll   time.Duration
	gen    int
	closed bool
	logger *log.Logger
}

func (p *player) Play(onEnded func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("player closed")
	}
	p.gen++
	p.voice.Play()
	go p.watch(p.gen, onEnded)
	return nil
}

func (p *player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.voice.Pause()
}

func (p *player) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.voice.Seek(0, io.SeekStart); err != nil {
		p.logger.Warn("failed to rewind clip", "error", err)
	}
}

func (p *player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.gen++
	return p.voice.Close()
}

func (p *player) watch(gen int, onEnded func()) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		ended := !p.voice.IsPlaying()
		if ended {
			p.gen++
		}
		p.mu.Unlock()

		if ended {
			if onEnded != nil {
				onEnded()
			}
			return
		}
	}
}

var _ capture.Players = (*Players)(nil)
