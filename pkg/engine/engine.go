// Package engine はアクターのスクリプトを協調的に実行するエンジン。
//
// トリガー（開始、クリック、キー、衝突、色、メッセージ）ごとにランを起動し、
// 各ランはスケジューラのバトンを持っている間だけ進む。
// ホストは毎フレーム Tick を呼んでフレームを進める。
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/config"
	"github.com/zurustar/blockstage/pkg/document"
	"github.com/zurustar/blockstage/pkg/logger"
	"github.com/zurustar/blockstage/pkg/sched"
	"github.com/zurustar/blockstage/pkg/sound"
	"github.com/zurustar/blockstage/pkg/stage"
)

var (
	// ErrUnknownActor はアクターが登録されていない
	ErrUnknownActor = errors.New("unknown actor")
	// ErrNoScript はアクターにスクリプトがない
	ErrNoScript = errors.New("actor has no script")
)

// Renderer は再描画が必要になったアクターを受け取る
type Renderer interface {
	Refresh(a *actor.Actor)
}

// Controls は開始・停止ボタンなど実行中表示の切り替え先
type Controls interface {
	SetScriptsRunning(running bool)
}

// ColorSampler はステージ座標の色を返す。範囲外なら false
type ColorSampler interface {
	ColorAt(x, y float64) (stage.RGB, bool)
}

// BackdropSwitcher は背景を切り替える。該当する背景がなければ false
type BackdropSwitcher interface {
	SwitchBackdrop(ref string) bool
}

// Editor は編集中のスクリプト文書を提供する
type Editor interface {
	ActiveDocument() (actorID string, blob []byte, ok bool)
}

// DocumentStore はスクリプト文書の保存先
type DocumentStore interface {
	SaveDocument(actorID string, blob []byte) error
}

// BroadcastHook はメッセージ送信の通知先
type BroadcastHook func(channel string)

// Engine はスクリプト実行エンジン
type Engine struct {
	actors *actor.Registry
	sched  *sched.Scheduler
	tuning config.Tuning
	log    *slog.Logger

	renderer  Renderer
	controls  Controls
	sampler   ColorSampler
	backdrops BackdropSwitcher
	editor    Editor
	store     DocumentStore
	loader    sound.Loader
	sounds    *sound.Registry
	hooks     []BroadcastHook

	// 以下はバトンを保持している間だけ触る
	state      RunState
	guard      guardSet
	pool       *contextPool
	pulses     int
	controlsOn bool

	bumpGen uint64
	bumps   map[bumpKey]uint64

	triggers     []*colorTrigger
	colorGen     uint64
	colorRunning map[string]uint64
	recompile    *sched.Timer

	clickSeq   uint64
	clickReset *sched.Timer
	keySeq     uint64
	keyReset   *sched.Timer
}

// Option はエンジンの設定
type Option func(*Engine)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithTuning は調整値を設定する
func WithTuning(t config.Tuning) Option {
	return func(e *Engine) {
		e.tuning = t
	}
}

// WithScheduler は外部で作ったスケジューラを使う
func WithScheduler(s *sched.Scheduler) Option {
	return func(e *Engine) {
		e.sched = s
	}
}

// WithRenderer は再描画先を設定する
func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithControls は実行中表示の切り替え先を設定する
func WithControls(c Controls) Option {
	return func(e *Engine) {
		e.controls = c
	}
}

// WithSampler はステージの色の取得元を設定する
func WithSampler(s ColorSampler) Option {
	return func(e *Engine) {
		e.sampler = s
	}
}

// WithBackdrops は背景の切り替え先を設定する
func WithBackdrops(b BackdropSwitcher) Option {
	return func(e *Engine) {
		e.backdrops = b
	}
}

// WithSounds は音声の読み込み元を設定する
func WithSounds(l sound.Loader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithEditor は編集中の文書の取得元を設定する
func WithEditor(ed Editor) Option {
	return func(e *Engine) {
		e.editor = ed
	}
}

// WithDocumentStore は文書の保存先を設定する
func WithDocumentStore(s DocumentStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithBroadcastHook はメッセージ送信の通知先を追加する
func WithBroadcastHook(h BroadcastHook) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, h)
	}
}

// New はエンジンを作成する
func New(actors *actor.Registry, opts ...Option) *Engine {
	e := &Engine{
		actors:       actors,
		tuning:       config.Default(),
		log:          logger.GetLogger(),
		sounds:       sound.NewRegistry(),
		guard:        make(guardSet),
		bumps:        make(map[bumpKey]uint64),
		colorRunning: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = sched.New(sched.WithLogger(e.log))
	}
	e.pool = newContextPool(e.log)
	return e
}

// Scheduler はエンジンが使うスケジューラを返す
func (e *Engine) Scheduler() *sched.Scheduler {
	return e.sched
}

// Sounds は再生中の音声の登録を返す
func (e *Engine) Sounds() *sound.Registry {
	return e.sounds
}

// Tick はフレームを1つ進める。ホストのフレームループから呼ぶ
func (e *Engine) Tick(now time.Time) {
	e.sched.Tick(now, e.frame)
}

// Settle は実行可能なランがすべて待機点に入るまで待つ
func (e *Engine) Settle() {
	e.sched.Settle()
}

// View はバトンを取って fn を実行する。ホストがアクターの状態を読むときに使う
func (e *Engine) View(fn func()) {
	e.sched.Do(fn)
}

// frame はフレームごとの処理。バトンを保持した状態で呼ばれる
func (e *Engine) frame(dt time.Duration) {
	for _, a := range e.actors.All() {
		a.Advance(dt)
		if a.TakeDirty() && e.renderer != nil {
			e.renderer.Refresh(a)
		}
	}
	e.sounds.Sweep()
	if e.state.Running {
		e.scanCollisions()
	}
	e.scanColors()
}

// Snapshot はエンジン状態の写し
type Snapshot struct {
	Running           bool
	ExecutingOnDemand bool
	ExecutingKeyPress bool
	EventDriven       bool
	Stopped           bool
	ControlsActive    bool
	Contexts          int
	ColorTriggers     int
	ColorRunning      int
	Sounds            int
	Frame             uint64
}

// Snapshot は現在の状態を返す
func (e *Engine) Snapshot() Snapshot {
	var s Snapshot
	e.sched.Do(func() {
		s = Snapshot{
			Running:           e.state.Running,
			ExecutingOnDemand: e.state.ExecutingOnDemand,
			ExecutingKeyPress: e.state.ExecutingKeyPress,
			EventDriven:       e.state.EventDriven,
			Stopped:           e.state.stop,
			ControlsActive:    e.controlsOn,
			Contexts:          e.pool.len(),
			ColorTriggers:     len(e.triggers),
			ColorRunning:      len(e.colorRunning),
			Sounds:            e.sounds.Len(),
			Frame:             e.sched.Frame(),
		}
	})
	return s
}

// Context はアクターの実行コンテキストを返す。必要なら作成する
func (e *Engine) Context(actorID string) (*document.Workspace, error) {
	var (
		ws  *document.Workspace
		err error
	)
	e.sched.Do(func() {
		a, ok := e.actors.Get(actorID)
		if !ok {
			err = ErrUnknownActor
			return
		}
		if ws = e.pool.get(a); ws == nil {
			err = ErrNoScript
		}
	})
	return ws, err
}

// EditField はブロックのフィールドを書き換える。実行コンテキストがあればそれを、
// なければ保存済みの文書を書き換える。実行中のランは次の命令から新しい値を読む。
func (e *Engine) EditField(actorID, blockID, field, value string) error {
	var err error
	e.sched.Do(func() {
		a, ok := e.actors.Get(actorID)
		if !ok {
			err = ErrUnknownActor
			return
		}
		if ws, live := e.pool.lookup(actorID); live {
			err = ws.SetField(blockID, field, value)
		} else {
			err = editDocument(a, blockID, field, value)
		}
		if err == nil {
			e.scheduleRecompile()
		}
	})
	return err
}

func editDocument(a *actor.Actor, blockID, field, value string) error {
	if len(a.Script) == 0 {
		return ErrNoScript
	}
	ws, err := document.Load(a.Script)
	if err != nil {
		return err
	}
	defer ws.Dispose()
	if err := ws.SetField(blockID, field, value); err != nil {
		return err
	}
	blob, err := ws.Save()
	if err != nil {
		return err
	}
	a.Script = blob
	return nil
}

// Shutdown はすべてのランを止め、終了を待つ
func (e *Engine) Shutdown() {
	e.StopAll()
	e.sched.Wait()
}

// busy は何らかのトリガーによる実行が続いているかどうか
func (e *Engine) busy() bool {
	return e.state.Running || e.state.ExecutingOnDemand || e.state.ExecutingKeyPress || e.pulses > 0
}

// refreshControls は実行中表示を現在の状態に合わせる。
// 最も外側の実行が終わったときだけ表示が戻る。
func (e *Engine) refreshControls() {
	busy := e.busy()
	if !busy {
		e.state.EventDriven = false
	}
	e.setControls(busy)
}

func (e *Engine) setControls(on bool) {
	if e.controlsOn == on {
		return
	}
	e.controlsOn = on
	if e.controls != nil {
		e.controls.SetScriptsRunning(on)
	}
}

// signalStop は停止要求を出し、フレーム待ちのランを起こす
func (e *Engine) signalStop() {
	e.state.Stop()
	e.sched.Interrupt()
}

// persistActive は編集中の文書をアクターに書き戻して保存する
func (e *Engine) persistActive() {
	if e.editor == nil {
		return
	}
	id, blob, ok := e.editor.ActiveDocument()
	if !ok {
		return
	}
	a, found := e.actors.Get(id)
	if !found {
		return
	}
	a.Script = blob
	if e.store == nil {
		return
	}
	if err := e.store.SaveDocument(id, blob); err != nil {
		e.log.Warn("failed to persist script", "actor", id, "error", err)
	}
}

func (e *Engine) hideAllSpeech() {
	for _, a := range e.actors.All() {
		a.HideSpeech()
	}
}
