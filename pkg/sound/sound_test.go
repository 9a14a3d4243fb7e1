package sound

import (
	"errors"
	"io"
	"testing"
	"testing/fstest"
	"time"

	"github.com/zurustar/blockstage/pkg/fileutil"
)

type fakePlayer struct {
	playing bool
	rewound bool
	closed  int
}

func (p *fakePlayer) Play() { p.playing = true }
func (p *fakePlayer) Pause() { p.playing = false }
func (p *fakePlayer) Rewind() error {
	p.rewound = true
	return nil
}
func (p *fakePlayer) IsPlaying() bool { return p.playing }
func (p *fakePlayer) Close() error {
	p.closed++
	return nil
}

func TestRegistry(t *testing.T) {
	t.Run("release removes and closes once", func(t *testing.T) {
		r := NewRegistry()
		p := &fakePlayer{}
		p.Play()
		r.Add(p)
		r.Release(p)
		r.Release(p)
		if r.Len() != 0 || p.closed != 1 || p.playing {
			t.Errorf("len=%d closed=%d playing=%v", r.Len(), p.closed, p.playing)
		}
	})

	t.Run("stop all pauses and rewinds", func(t *testing.T) {
		r := NewRegistry()
		a, b := &fakePlayer{}, &fakePlayer{}
		a.Play()
		b.Play()
		r.Add(a)
		r.Add(b)
		r.StopAll()
		for _, p := range []*fakePlayer{a, b} {
			if p.playing || !p.rewound || p.closed != 1 {
				t.Errorf("player not stopped: %+v", p)
			}
		}
		if r.Len() != 0 {
			t.Errorf("Len() = %d after StopAll", r.Len())
		}
		// StopAll 後の Release は二重解放しない
		r.Release(a)
		if a.closed != 1 {
			t.Errorf("closed = %d, want 1", a.closed)
		}
	})

	t.Run("sweep drops finished players", func(t *testing.T) {
		r := NewRegistry()
		done, running := &fakePlayer{}, &fakePlayer{}
		running.Play()
		r.Add(done)
		r.Add(running)
		r.Sweep()
		if r.Len() != 1 || done.closed != 1 || running.closed != 0 {
			t.Errorf("len=%d done.closed=%d running.closed=%d", r.Len(), done.closed, running.closed)
		}
	})
}

type constRenderer struct{ v float32 }

func (c constRenderer) Render(left, right []float32) {
	for i := range left {
		left[i] = c.v
		right[i] = -c.v
	}
}

func TestMIDIStreamEnds(t *testing.T) {
	// 10ms 分 = 441 サンプル
	s := newMIDIStream(constRenderer{v: 2}, 10*time.Millisecond)

	buf := make([]byte, 1024)
	total := 0
	for {
		n, err := s.Read(buf)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if n > 0 && (buf[0] != 0xff || buf[1] != 0x7f) {
			t.Fatalf("left sample not clamped to max: %x %x", buf[0], buf[1])
		}
	}
	if total != 441*4 {
		t.Errorf("read %d bytes, want %d", total, 441*4)
	}
}

func TestLoaderErrors(t *testing.T) {
	fsys := fileutil.NewEmbedFS(fstest.MapFS{
		"sounds/beep.xyz": {Data: []byte("??")},
		"sounds/song.mid": {Data: []byte("MThd")},
	}, "")
	l := &EbitenLoader{fsys: fsys, cache: make(map[string][]byte)}

	if _, err := l.Load("sounds/missing.wav"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}
	if _, err := l.Load("sounds/beep.xyz"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unknown format error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := l.Load("sounds/song.mid"); !errors.Is(err, ErrNoSoundFont) {
		t.Errorf("midi without soundfont error = %v, want ErrNoSoundFont", err)
	}
}
