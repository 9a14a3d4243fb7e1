package engine

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/document"
	"github.com/zurustar/blockstage/pkg/sched"
	"github.com/zurustar/blockstage/pkg/sound"
	"github.com/zurustar/blockstage/pkg/stage"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const frameInterval = 16 * time.Millisecond

var discard = slog.New(slog.DiscardHandler)

// fakePlayer は終了するまで再生中のままのプレイヤー
type fakePlayer struct {
	mu      sync.Mutex
	playing bool
	closed  bool
	rewound int
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePlayer) Rewind() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rewound++
	return nil
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.playing = false
	return nil
}

func (p *fakePlayer) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePlayer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeLoader struct {
	mu      sync.Mutex
	players []*fakePlayer
	urls    []string
	err     error
}

func (l *fakeLoader) Load(url string) (sound.Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := &fakePlayer{}
	l.players = append(l.players, p)
	l.urls = append(l.urls, url)
	return p, nil
}

func (l *fakeLoader) loaded() []*fakePlayer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakePlayer(nil), l.players...)
}

type fakeControls struct {
	mu      sync.Mutex
	history []bool
}

func (c *fakeControls) SetScriptsRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, running)
}

func (c *fakeControls) calls() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.history...)
}

type fakeRenderer struct {
	mu        sync.Mutex
	refreshed map[string]int
}

func (r *fakeRenderer) Refresh(a *actor.Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refreshed == nil {
		r.refreshed = make(map[string]int)
	}
	r.refreshed[a.ID]++
}

func (r *fakeRenderer) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshed[id]
}

type fakeEditor struct {
	actorID string
	blob    []byte
}

func (e fakeEditor) ActiveDocument() (string, []byte, bool) {
	return e.actorID, e.blob, e.actorID != ""
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (s *fakeStore) SaveDocument(actorID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[actorID] = blob
	return nil
}

var errLoad = errors.New("load failed")

// fixture はフレームを手動で進めるテスト用のエンジン
type fixture struct {
	t        *testing.T
	e        *Engine
	now      time.Time
	controls *fakeControls
	renderer *fakeRenderer
	sampler  *stage.Sampler
	loader   *fakeLoader
}

func newFixture(t *testing.T, actors []*actor.Actor, opts ...Option) *fixture {
	t.Helper()
	reg, err := actor.NewRegistry(actors...)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		t:        t,
		now:      t0,
		controls: &fakeControls{},
		renderer: &fakeRenderer{},
		sampler:  stage.NewSampler(480, 360),
		loader:   &fakeLoader{},
	}
	base := []Option{
		WithLogger(discard),
		WithScheduler(sched.New(sched.WithStart(t0), sched.WithLogger(discard))),
		WithControls(f.controls),
		WithRenderer(f.renderer),
		WithSampler(f.sampler),
		WithSounds(f.loader),
	}
	f.e = New(reg, append(base, opts...)...)

	t.Cleanup(func() {
		finished := make(chan struct{})
		go func() {
			f.e.Shutdown()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Error("engine did not shut down")
		}
	})
	return f
}

// step はフレームを n 回進め、そのたびにランが落ち着くまで待つ
func (f *fixture) step(n int) {
	for i := 0; i < n; i++ {
		f.now = f.now.Add(frameInterval)
		f.e.Tick(f.now)
		f.e.Settle()
	}
}

// await は done が閉じるまで最大 maxFrames フレーム進める
func (f *fixture) await(done <-chan struct{}, maxFrames int) {
	f.t.Helper()
	f.e.Settle()
	for i := 0; i < maxFrames; i++ {
		select {
		case <-done:
			return
		default:
		}
		f.step(1)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		f.t.Fatalf("run did not finish within %d frames", maxFrames)
	}
}

// finishedWithin は追加のフレームなしで done が閉じるかを確認する
func finishedWithin(done <-chan struct{}, d time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func isClosed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// blk はフィールドをキーと値の組で指定してブロックを作る
func blk(id, typ string, kv ...string) document.Block {
	b := document.Block{ID: id, Type: typ}
	if len(kv) > 0 {
		b.Fields = make(map[string]string)
		for i := 0; i+1 < len(kv); i += 2 {
			b.Fields[kv[i]] = kv[i+1]
		}
	}
	return b
}

// chain はブロックを順に Next でつなぐ
func chain(blocks ...document.Block) []document.Block {
	for i := 0; i+1 < len(blocks); i++ {
		blocks[i].Next = blocks[i+1].ID
	}
	return blocks
}

// substack はループブロックの本体を設定する
func substack(loop document.Block, first string) document.Block {
	loop.Inputs = map[string]string{document.InputSubstack: first}
	return loop
}

func newActor(t *testing.T, id string, blocks ...document.Block) *actor.Actor {
	t.Helper()
	a := actor.New(id, id)
	if len(blocks) > 0 {
		blob, err := document.Encode(blocks)
		if err != nil {
			t.Fatal(err)
		}
		a.Script = blob
	}
	return a
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}
