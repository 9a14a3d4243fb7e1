package engine

import (
	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/command"
	"github.com/zurustar/blockstage/pkg/document"
	"github.com/zurustar/blockstage/pkg/stage"
)

// colorTrigger は「色に触れたとき」ブロックをコンパイルしたもの
type colorTrigger struct {
	actorID  string
	originID string
	target   stage.RGB
	body     []command.Node
	touching bool
}

func (t *colorTrigger) key() string {
	return t.actorID + "-" + t.originID
}

// RequestColorRecompile は色トリガーの再構築を予約する。
// 短い間に何度呼ばれても再構築は最後の呼び出しから一定時間後の1回だけ
func (e *Engine) RequestColorRecompile() {
	e.sched.Do(e.scheduleRecompile)
}

func (e *Engine) scheduleRecompile() {
	stopTimer(e.recompile)
	e.recompile = e.sched.After(e.tuning.Trigger.RecompileDebounce(), func() {
		e.compileColorTriggers(false)
	})
}

// compileColorTriggers は保存済みのスクリプト文書から色トリガーを作り直す。
// fresh でなければ同じブロックの接触状態を引き継ぐ
func (e *Engine) compileColorTriggers(fresh bool) {
	e.persistActive()

	touching := make(map[string]bool, len(e.triggers))
	if !fresh {
		for _, t := range e.triggers {
			touching[t.key()] = t.touching
		}
	}

	var triggers []*colorTrigger
	for _, a := range e.actors.All() {
		if len(a.Script) == 0 {
			continue
		}
		ws, err := document.Load(a.Script)
		if err != nil {
			e.log.Warn("failed to load script", "actor", a.ID, "error", err)
			continue
		}
		for _, hat := range ws.BlocksByType(document.HatColorUnder) {
			target, err := stage.ParseHex(hat.Field(document.FieldColor))
			if err != nil {
				e.log.Warn("invalid trigger color", "actor", a.ID, "block", hat.ID(), "error", err)
				continue
			}
			body, err := document.Body(hat)
			if err != nil {
				e.log.Warn("failed to generate color script", "actor", a.ID, "block", hat.ID(), "error", err)
				continue
			}
			if len(body) == 0 {
				continue
			}
			t := &colorTrigger{actorID: a.ID, originID: hat.ID(), target: target, body: body}
			t.touching = touching[t.key()]
			triggers = append(triggers, t)
		}
		ws.Dispose()
	}
	e.triggers = triggers
}

// scanColors は各色トリガーについてアクターの下の色を調べる。
// 触れていない状態から触れた状態に変わったときだけ起動する
func (e *Engine) scanColors() {
	if e.sampler == nil {
		return
	}
	tolerance := e.tuning.Trigger.ColorTolerance
	for _, t := range e.triggers {
		was := t.touching
		t.touching = false

		a, ok := e.actors.Get(t.actorID)
		if ok && a.Pose.Visible {
			if c, inside := e.sampler.ColorAt(a.Pose.X, a.Pose.Y); inside {
				t.touching = stage.Distance(c, t.target) < tolerance
			}
		}
		if !t.touching || was {
			continue
		}
		if _, running := e.colorRunning[t.key()]; !running {
			e.launchColor(t, a)
		}
	}
}

func (e *Engine) currentTrigger(key string) *colorTrigger {
	for _, t := range e.triggers {
		if t.key() == key {
			return t
		}
	}
	return nil
}

// launchColor は触れている間、毎フレーム本体を実行し続けるタスクを起動する
func (e *Engine) launchColor(t *colorTrigger, a *actor.Actor) {
	key := t.key()
	e.colorGen++
	gen := e.colorGen
	e.colorRunning[key] = gen

	if !e.busy() {
		e.state.Resume()
	}
	e.pulses++
	e.state.EventDriven = true
	e.refreshControls()

	epoch := e.state.epoch
	abort := func() bool {
		c := e.currentTrigger(key)
		return c == nil || !c.touching
	}
	e.sched.Go(func() {
		defer func() {
			if e.colorRunning[key] == gen {
				delete(e.colorRunning, key)
			}
			e.pulses--
			e.refreshControls()
		}()
		for {
			c := e.currentTrigger(key)
			if c == nil || !c.touching || e.state.stop || e.state.epoch != epoch {
				return
			}
			ws := e.pool.get(a)
			if ws == nil {
				return
			}
			r := &run{actor: a, ws: ws, epoch: epoch, abort: abort}
			e.execute(r, c.body, false)
			if e.halted(r) {
				return
			}
			e.sched.NextFrame()
		}
	})
}
