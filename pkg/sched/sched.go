// Package sched はスクリプト実行用の協調スケジューラを提供する。
//
// すべてのタスクは1本のバトンを保持している間だけ実行される。
// タスクがバトンを手放すのは待機点（フレーム待ち、子タスクの完了待ち、
// Yield）だけなので、バトンの内側で触る状態にはロックが要らない。
// フレームはホスト側が Tick を呼ぶことで進む。
package sched

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scheduler は協調スケジューラ
type Scheduler struct {
	baton sync.Mutex

	// 以下はバトンを保持している間だけ触る
	waiters []chan struct{}
	now     time.Time
	frames  uint64
	timers  []*Timer

	// 実行可能なタスク数。Settle が使う
	mu      sync.Mutex
	cond    *sync.Cond
	running int

	tasks sync.WaitGroup
	log   *slog.Logger
}

// Option はスケジューラの設定
type Option func(*Scheduler)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithStart はフレーム時計の初期時刻を設定する
func WithStart(t time.Time) Option {
	return func(s *Scheduler) {
		s.now = t
	}
}

// New はスケジューラを作成する
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		now: time.Now(),
		log: slog.Default(),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Go は fn を新しいタスクとして起動する。返り値は fn の終了で閉じる。
// バトンを保持していてもいなくても呼び出せる。
func (s *Scheduler) Go(fn func()) <-chan struct{} {
	done := make(chan struct{})
	s.enter()
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer close(done)
		if err := s.run(fn); err != nil {
			s.log.Error("task failed", "error", err)
		}
	}()
	return done
}

// All は fns を並行タスクとして起動し、すべての終了まで待つ。
// 呼び出し元はバトンを保持していること。待っている間はバトンを手放す。
func (s *Scheduler) All(fns ...func()) {
	if len(fns) == 0 {
		return
	}
	wake := make(chan struct{})
	remaining := len(fns)

	var g errgroup.Group
	for _, fn := range fns {
		s.enter()
		s.tasks.Add(1)
		g.Go(func() error {
			defer s.tasks.Done()
			return s.run(func() {
				defer func() {
					remaining--
					if remaining == 0 {
						s.enter()
						close(wake)
					}
				}()
				fn()
			})
		})
	}
	s.park(wake)

	if err := g.Wait(); err != nil {
		s.log.Error("task failed", "error", err)
	}
}

// run はバトンを取って fn を実行する。panic はエラーとして返す
func (s *Scheduler) run(fn func()) (err error) {
	s.baton.Lock()
	defer s.baton.Unlock()
	defer s.exit()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

// Do はバトンを取って fn を同期的に実行する。
// タスクの内側から呼ぶとデッドロックする。
func (s *Scheduler) Do(fn func()) {
	s.baton.Lock()
	defer s.baton.Unlock()
	fn()
}

// Yield は他のタスクに実行の機会を与える
func (s *Scheduler) Yield() {
	s.baton.Unlock()
	runtime.Gosched()
	s.baton.Lock()
}

// NextFrame は次のフレーム（または Interrupt）まで待ち、その時点のフレーム時刻を返す。
// 呼び出し元は戻った後に自分の停止条件を確認すること。
func (s *Scheduler) NextFrame() time.Time {
	w := make(chan struct{})
	s.waiters = append(s.waiters, w)
	s.park(w)
	return s.now
}

// Interrupt はフレームを進めずにフレーム待ちのタスクをすべて起こす。
// 停止要求を待機中のタスクに即座に気付かせるために使う。
func (s *Scheduler) Interrupt() {
	s.wakeWaiters()
}

// Now は現在のフレーム時刻を返す
func (s *Scheduler) Now() time.Time {
	return s.now
}

// Frame はこれまでに進んだフレーム数を返す
func (s *Scheduler) Frame() uint64 {
	return s.frames
}

// Tick はフレームを1つ進める。期限の来たタイマーを実行し、fn を呼び、
// NextFrame で待っているタスクを起こす。
func (s *Scheduler) Tick(now time.Time, fn func(dt time.Duration)) {
	s.baton.Lock()
	defer s.baton.Unlock()

	dt := now.Sub(s.now)
	if dt < 0 {
		dt = 0
		now = s.now
	}
	s.now = now
	s.frames++

	s.fireTimers()
	if fn != nil {
		fn(dt)
	}
	s.wakeWaiters()
}

// Settle は実行可能なタスクがなくなる（すべて待機点に入るか終了する）まで待つ。
// バトンの外から呼ぶこと。
func (s *Scheduler) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running > 0 {
		s.cond.Wait()
	}
}

// Wait は起動済みのすべてのタスクの終了を待つ。バトンの外から呼ぶこと
func (s *Scheduler) Wait() {
	s.tasks.Wait()
}

func (s *Scheduler) park(wake <-chan struct{}) {
	s.exit()
	s.baton.Unlock()
	<-wake
	s.baton.Lock()
}

func (s *Scheduler) wakeWaiters() {
	waiters := s.waiters
	s.waiters = nil
	for _, w := range waiters {
		s.enter()
		close(w)
	}
}

func (s *Scheduler) enter() {
	s.mu.Lock()
	s.running++
	s.mu.Unlock()
}

func (s *Scheduler) exit() {
	s.mu.Lock()
	s.running--
	if s.running == 0 {
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// Timer はフレーム時計で動くワンショットタイマー
type Timer struct {
	deadline time.Time
	fn       func()
	stopped  bool
}

// After は d 経過後の最初のフレームで fn を実行する。呼び出し元はバトンを保持していること
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	t := &Timer{deadline: s.now.Add(d), fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Stop はタイマーを取り消す。呼び出し元はバトンを保持していること
func (t *Timer) Stop() {
	t.stopped = true
}

func (s *Scheduler) fireTimers() {
	var due, pending []*Timer
	for _, t := range s.timers {
		switch {
		case t.stopped:
		case !t.deadline.After(s.now):
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	s.timers = pending

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		if !t.stopped {
			t.fn()
		}
	}
}
