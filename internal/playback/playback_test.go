package playback

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/softcap"
)

var format = softcap.Format{SampleRate: 8000, Channels: 1}

type fakeVoice struct {
	mu      sync.Mutex
	r       io.ReadSeeker
	playing bool
	closed  bool
	seeks   int
	seekErr error
}

func (v *fakeVoice) Play()  { v.set(true) }
func (v *fakeVoice) Pause() { v.set(false) }

func (v *fakeVoice) set(playing bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = playing
}

func (v *fakeVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *fakeVoice) Seek(offset int64, whence int) (int64, error) {
	v.mu.Lock()
	v.seeks++
	err := v.seekErr
	v.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return v.r.Seek(offset, whence)
}

func (v *fakeVoice) Close() error {
	v.closed = true
	return nil
}

type fakeDevice struct {
	voices []*fakeVoice
}

func (d *fakeDevice) NewVoice(r io.ReadSeeker) Voice {
	v := &fakeVoice{r: r}
	d.voices = append(d.voices, v)
	return v
}

func (d *fakeDevice) Format() softcap.Format { return format }

func newPlayers(t *testing.T) (*Players, *fakeDevice, *capture.MemoryBlobs) {
	t.Helper()
	device := &fakeDevice{}
	blobs := capture.NewMemoryBlobs()
	fetch := func(uri string) ([]byte, string, error) {
		if uri == "file:///clip.wav" {
			return softcap.EncodeWAV(format, []byte{1, 0, 2, 0}), softcap.WAVMimeType, nil
		}
		return nil, "", errors.New("not found")
	}
	p := New(device, blobs, fetch, nil)
	p.poll = time.Millisecond
	return p, device, blobs
}

func TestOpen(t *testing.T) {
	t.Run("transient clip", func(t *testing.T) {
		players, device, blobs := newPlayers(t)
		uri := blobs.Create(softcap.EncodeWAV(softcap.Format{SampleRate: 8000, Channels: 2}, []byte{1, 0, 3, 0}), softcap.WAVMimeType)

		if _, err := players.Open(uri); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		pcm, _ := io.ReadAll(device.voices[0].r)
		if len(pcm) != 2 || pcm[0] != 2 {
			t.Errorf("voice pcm = %v, want one averaged mono frame", pcm)
		}
	})

	t.Run("durable clip is fetched", func(t *testing.T) {
		players, device, _ := newPlayers(t)
		if _, err := players.Open("file:///clip.wav"); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if len(device.voices) != 1 {
			t.Errorf("voices = %d, want 1", len(device.voices))
		}
	})

	t.Run("missing clip", func(t *testing.T) {
		players, _, _ := newPlayers(t)
		if _, err := players.Open("file:///gone.wav"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("undecodable clip", func(t *testing.T) {
		players, _, blobs := newPlayers(t)
		uri := blobs.Create([]byte("nope"), "video/webm")
		if _, err := players.Open(uri); !errors.Is(err, softcap.ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})
}

func TestPlayer(t *testing.T) {
	t.Run("rewind failure goes to the players logger", func(t *testing.T) {
		players, device, _ := newPlayers(t)
		var logs bytes.Buffer
		players.logger = log.New(&logs)

		p, err := players.Open("file:///clip.wav")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		device.voices[0].seekErr = errors.New("seek failed")
		p.Rewind()

		if !strings.Contains(logs.String(), "failed to rewind clip") {
			t.Errorf("logs = %q, want the rewind failure", logs.String())
		}
	})

	t.Run("reports the end once", func(t *testing.T) {
		players, device, _ := newPlayers(t)
		p, _ := players.Open("file:///clip.wav")

		ended := make(chan struct{}, 2)
		if err := p.Play(func() { ended <- struct{}{} }); err != nil {
			t.Fatalf("Play() error = %v", err)
		}

		// the device finishes the sound on its own
		device.voices[0].set(false)

		select {
		case <-ended:
		case <-time.After(time.Second):
			t.Fatal("onEnded was not called")
		}
		time.Sleep(10 * time.Millisecond)
		if len(ended) != 0 {
			t.Error("onEnded called more than once")
		}
	})

	t.Run("pause suppresses the end callback", func(t *testing.T) {
		players, _, _ := newPlayers(t)
		p, _ := players.Open("file:///clip.wav")

		called := make(chan struct{}, 1)
		p.Play(func() { called <- struct{}{} })
		p.Pause()

		select {
		case <-called:
			t.Error("onEnded should not fire after Pause")
		case <-time.After(20 * time.Millisecond):
		}
	})

	t.Run("rewind seeks to start", func(t *testing.T) {
		players, device, _ := newPlayers(t)
		p, _ := players.Open("file:///clip.wav")

		io.ReadAll(device.voices[0].r)
		p.Rewind()

		rest, _ := io.ReadAll(device.voices[0].r)
		if len(rest) != 4 {
			t.Errorf("after rewind read %d bytes, want 4", len(rest))
		}
	})

	t.Run("closed player cannot play", func(t *testing.T) {
		players, device, _ := newPlayers(t)
		p, _ := players.Open("file:///clip.wav")

		if err := p.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if !device.voices[0].closed {
			t.Error("voice should be closed")
		}
		if err := p.Play(nil); err == nil {
			t.Error("expected error playing a closed player")
		}
	})
}
