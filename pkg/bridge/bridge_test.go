package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type published struct {
	topic   string
	payload string
}

type fakeTransport struct {
	mu         sync.Mutex
	handlers   map[string]func(topic string, payload []byte)
	subscribed chan string
	published  chan published
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers:   make(map[string]func(string, []byte)),
		subscribed: make(chan string, 4),
		published:  make(chan published, 16),
	}
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	f.published <- published{topic: topic, payload: string(payload)}
	return nil
}

func (f *fakeTransport) Subscribe(topic string, handler func(string, []byte)) error {
	f.mu.Lock()
	f.handlers[strings.TrimSuffix(topic, "#")] = handler
	f.mu.Unlock()
	f.subscribed <- topic
	return nil
}

func (f *fakeTransport) Close() {}

// deliver は購読中のワイルドカードに一致するハンドラに配送する
func (f *fakeTransport) deliver(topic, payload string) {
	f.mu.Lock()
	var hs []func(string, []byte)
	for prefix, h := range f.handlers {
		if strings.HasPrefix(topic, prefix) {
			hs = append(hs, h)
		}
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(topic, []byte(payload))
	}
}

// fakeEngine は受信したチャンネルを記録する。エンジンと同じく Receive では送信フックを呼ばない
type fakeEngine struct {
	mu       sync.Mutex
	received []string
}

func (e *fakeEngine) Receive(channel string) <-chan struct{} {
	e.mu.Lock()
	e.received = append(e.received, channel)
	e.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func (e *fakeEngine) channels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.received...)
}

func startBridge(t *testing.T, opts ...Option) (*Bridge, *fakeTransport, *fakeEngine) {
	t.Helper()
	tr := newFakeTransport()
	opts = append([]Option{WithOrigin("me"), WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	b := New(tr, opts...)
	eng := &fakeEngine{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, eng) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case topic := <-tr.subscribed:
		if topic != "blockstage/broadcast/#" {
			t.Fatalf("subscribed to %q", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not subscribe")
	}
	return b, tr, eng
}

func expectPublished(t *testing.T, tr *fakeTransport) published {
	t.Helper()
	select {
	case p := <-tr.published:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
		return published{}
	}
}

func expectNothingPublished(t *testing.T, tr *fakeTransport) {
	t.Helper()
	select {
	case p := <-tr.published:
		t.Fatalf("unexpected publish %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalBroadcastIsPublished(t *testing.T) {
	b, tr, _ := startBridge(t)

	b.Hook("go")
	p := expectPublished(t, tr)
	if p.topic != "blockstage/broadcast/go" || p.payload != "me" {
		t.Errorf("published %+v", p)
	}
}

func TestRemoteBroadcastIsDeliveredOnce(t *testing.T) {
	_, tr, eng := startBridge(t)

	tr.deliver("blockstage/broadcast/door/open", "peer")
	if got := eng.channels(); len(got) != 1 || got[0] != "door/open" {
		t.Fatalf("engine received %v", got)
	}
	expectNothingPublished(t, tr)
}

func TestOwnEchoIsIgnored(t *testing.T) {
	_, tr, eng := startBridge(t)

	tr.deliver("blockstage/broadcast/go", "me")
	tr.deliver("other/topic", "peer")
	tr.deliver("blockstage/broadcast/", "peer")
	if got := eng.channels(); len(got) != 0 {
		t.Errorf("engine received %v", got)
	}
}

// 受信の配送中にローカルのスクリプトが同じチャンネルへ送信しても発行される
func TestLocalSendDuringRemoteDeliveryIsPublished(t *testing.T) {
	b, tr, eng := startBridge(t)

	tr.deliver("blockstage/broadcast/go", "peer")
	b.Hook("go")

	if p := expectPublished(t, tr); p.topic != "blockstage/broadcast/go" || p.payload != "me" {
		t.Errorf("published %+v", p)
	}
	expectNothingPublished(t, tr)
	if got := eng.channels(); len(got) != 1 || got[0] != "go" {
		t.Errorf("engine received %v", got)
	}
}

func TestWildcardChannelIsNotPublished(t *testing.T) {
	b, tr, _ := startBridge(t)

	b.Hook("a/#")
	b.Hook("a/+/b")
	expectNothingPublished(t, tr)
}

func TestTopic(t *testing.T) {
	if got := Topic("x"); got != "blockstage/broadcast/x" {
		t.Errorf("Topic() = %q", got)
	}
}

func TestDefaultOriginIsUnique(t *testing.T) {
	a := New(newFakeTransport(), WithLogger(slog.New(slog.DiscardHandler)))
	b := New(newFakeTransport(), WithLogger(slog.New(slog.DiscardHandler)))
	if a.Origin() == b.Origin() {
		t.Errorf("origins collide: %q", a.Origin())
	}
}

type fakeEditor struct {
	mu    sync.Mutex
	edits []Edit
	err   error
}

func (f *fakeEditor) ApplyEdit(ed Edit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, ed)
	return f.err
}

func TestRemoteEdit(t *testing.T) {
	ed := &fakeEditor{}
	_, tr, eng := startBridge(t, WithEditor(ed))

	select {
	case topic := <-tr.subscribed:
		if topic != "blockstage/edit/#" {
			t.Fatalf("subscribed to %q", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("edit topic not subscribed")
	}

	tr.deliver("blockstage/edit/cat", `{"block":"m1","field":"STEPS","value":"25"}`)
	tr.deliver("blockstage/edit/cat", `not json`)
	tr.deliver("blockstage/edit/", `{"block":"m1"}`)

	ed.mu.Lock()
	defer ed.mu.Unlock()
	if len(ed.edits) != 1 {
		t.Fatalf("edits = %+v, want 1", ed.edits)
	}
	want := Edit{Actor: "cat", Block: "m1", Field: "STEPS", Value: "25"}
	if ed.edits[0] != want {
		t.Errorf("edit = %+v, want %+v", ed.edits[0], want)
	}
	if got := eng.channels(); len(got) != 0 {
		t.Errorf("edit should not broadcast: %v", got)
	}
}

func TestRemoteEditErrorIsLogged(t *testing.T) {
	ed := &fakeEditor{err: errors.New("no such block")}
	_, tr, _ := startBridge(t, WithEditor(ed))
	<-tr.subscribed

	tr.deliver("blockstage/edit/cat", `{"block":"zz","field":"STEPS","value":"1"}`)
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if len(ed.edits) != 1 {
		t.Errorf("edits = %d, want 1", len(ed.edits))
	}
}
