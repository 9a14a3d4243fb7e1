package engine

import (
	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/command"
	"github.com/zurustar/blockstage/pkg/document"
	"github.com/zurustar/blockstage/pkg/sched"
)

// Start はすべてのアクターの開始スクリプトを並行に起動する。
// 返り値は起動したスクリプトがすべて終わると閉じる。
func (e *Engine) Start() <-chan struct{} {
	return e.sched.Go(e.start)
}

func (e *Engine) start() {
	if e.state.Running {
		return
	}
	e.stopAll()
	e.persistActive()

	e.state.Running = true
	e.state.Resume()
	e.state.EventDriven = true
	e.refreshControls()
	e.hideAllSpeech()
	e.guard.reset()

	jobs := e.collect(document.HatGoClicked, nil, nil)
	e.compileColorTriggers(true)
	e.sched.All(jobs...)
}

// StopAll はすべてのランを止め、実行コンテキストを破棄する
func (e *Engine) StopAll() {
	e.sched.Do(e.stopAll)
}

func (e *Engine) stopAll() {
	e.signalStop()
	e.state.Running = false
	e.state.ExecutingOnDemand = false
	e.state.ExecutingKeyPress = false
	e.state.EventDriven = false
	stopTimer(e.clickReset)
	stopTimer(e.keyReset)
	clear(e.colorRunning)
	clear(e.bumps)
	e.guard.reset()
	e.pool.reset()
	e.setControls(false)
	e.sounds.StopAll()
	e.hideAllSpeech()
}

// ClickActor はアクターのクリックスクリプトを起動する
func (e *Engine) ClickActor(actorID string) <-chan struct{} {
	return e.sched.Go(func() {
		a, ok := e.actors.Get(actorID)
		e.onDemand(func() []func() {
			if !ok {
				return nil
			}
			return e.collectFor(a, document.HatActorClicked, nil, nil)
		})
	})
}

// RunStack はアクターの文書上のブロックから始まるスタックを1回実行する
func (e *Engine) RunStack(actorID, blockID string) <-chan struct{} {
	return e.sched.Go(func() {
		a, ok := e.actors.Get(actorID)
		e.onDemand(func() []func() {
			if !ok {
				return nil
			}
			ws := e.pool.get(a)
			if ws == nil {
				return nil
			}
			start, ok := ws.Resolve(blockID)
			if !ok {
				return nil
			}
			var (
				cmds []command.Node
				err  error
			)
			if document.IsHat(start.Type()) {
				cmds, err = document.Body(start)
			} else {
				cmds, err = document.Generate(start)
			}
			if err != nil {
				e.log.Warn("failed to generate stack", "actor", actorID, "block", blockID, "error", err)
				return nil
			}
			r := e.newRun(a, ws)
			return []func(){func() { e.execute(r, cmds, false) }}
		})
	})
}

// onDemand はクリック系のパルスを実行する。同時に1つしか走らない
func (e *Engine) onDemand(collect func() []func()) {
	if e.state.ExecutingOnDemand {
		return
	}
	e.state.Resume()
	e.clickSeq++
	seq := e.clickSeq
	e.state.ExecutingOnDemand = true
	e.state.EventDriven = true
	e.refreshControls()
	e.guard.reset()

	e.sched.All(collect()...)

	e.guard.reset()
	e.clickReset = e.releaseLater(&e.state.ExecutingOnDemand, &e.clickSeq, seq)
}

// PressKey はキーに対応するスクリプトを全アクターで起動する
func (e *Engine) PressKey(key string) <-chan struct{} {
	key = NormalizeKey(key)
	return e.sched.Go(func() {
		e.pressKey(key)
	})
}

func (e *Engine) pressKey(key string) {
	if key == "" || e.state.stop || e.state.ExecutingKeyPress || e.state.ExecutingOnDemand {
		return
	}
	e.keySeq++
	seq := e.keySeq
	e.state.ExecutingKeyPress = true
	e.state.EventDriven = true
	e.refreshControls()
	e.persistActive()
	e.guard.reset()

	jobs := e.collect(document.HatKeyPressed, func(hat document.Node) bool {
		opt := NormalizeKey(hat.Field(document.FieldKeyOption))
		return opt == key || opt == KeyAny
	}, nil)
	e.sched.All(jobs...)

	e.guard.reset()
	e.keyReset = e.releaseLater(&e.state.ExecutingKeyPress, &e.keySeq, seq)
}

// Broadcast はチャンネルの受信スクリプトを全アクターで起動し、すべての終了まで待つ
func (e *Engine) Broadcast(channel string) <-chan struct{} {
	return e.broadcast(channel, true)
}

// Receive は外部から届いたメッセージを配送する。Broadcast と同じだが、
// このメッセージ自体は送信フックに通知しない
func (e *Engine) Receive(channel string) <-chan struct{} {
	return e.broadcast(channel, false)
}

func (e *Engine) broadcast(channel string, notify bool) <-chan struct{} {
	return e.sched.Go(func() {
		if e.state.stop {
			return
		}
		e.pulses++
		e.state.EventDriven = true
		e.refreshControls()
		defer func() {
			e.pulses--
			e.refreshControls()
		}()
		e.fanOut(channel, notify)
	})
}

// fanOut は受信スクリプトを起動して終了を待つ。スクリプト内の送信ブロックからも呼ばれる。
// notify なら送信フックに通知する
func (e *Engine) fanOut(channel string, notify bool) {
	if e.state.stop {
		return
	}
	e.persistActive()
	e.guard.reset()
	e.state.EventDriven = true
	if notify {
		for _, h := range e.hooks {
			h(channel)
		}
	}

	jobs := e.collect(document.HatEnvelopeRecv, func(hat document.Node) bool {
		return hat.Field(document.FieldEnvelopeChannel) == channel
	}, nil)
	e.sched.All(jobs...)

	e.guard.reset()
	if !e.busy() {
		e.state.EventDriven = false
	}
}

// collect は全アクターから指定タイプのイベントブロックを探し、ランを用意する
func (e *Engine) collect(hatType string, match func(document.Node) bool, abort func() bool) []func() {
	var jobs []func()
	for _, a := range e.actors.All() {
		if e.state.stop {
			break
		}
		jobs = append(jobs, e.collectFor(a, hatType, match, abort)...)
	}
	return jobs
}

func (e *Engine) collectFor(a *actor.Actor, hatType string, match func(document.Node) bool, abort func() bool) []func() {
	ws := e.pool.get(a)
	if ws == nil {
		return nil
	}
	var jobs []func()
	for _, hat := range ws.BlocksByType(hatType) {
		if match != nil && !match(hat) {
			continue
		}
		cmds, err := document.Body(hat)
		if err != nil {
			e.log.Warn("failed to generate script", "actor", a.ID, "block", hat.ID(), "error", err)
			continue
		}
		if len(cmds) == 0 {
			continue
		}
		r := e.newRun(a, ws)
		r.abort = abort
		jobs = append(jobs, func() { e.execute(r, cmds, false) })
	}
	return jobs
}

// releaseLater は少し後にフラグを下ろし、実行中表示を更新する。
// その間に次のパルスが始まっていればフラグはそのパルスのものなので触らない
func (e *Engine) releaseLater(flag *bool, seq *uint64, owner uint64) *sched.Timer {
	return e.sched.After(e.tuning.Trigger.FlagReset(), func() {
		if *seq != owner {
			return
		}
		*flag = false
		e.refreshControls()
	})
}

func stopTimer(t *sched.Timer) {
	if t != nil {
		t.Stop()
	}
}
