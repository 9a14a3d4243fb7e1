package engine

import (
	"math"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/command"
	"github.com/zurustar/blockstage/pkg/document"
)

// run は1つのアクターに対する1回のコマンド列の実行
type run struct {
	actor *actor.Actor
	ws    *document.Workspace
	// epoch は起動時の停止世代
	epoch uint64
	// abort が true を返すとこのランだけが止まる
	abort func() bool
	// guarded ならトップレベルの命令がガード集合に参加する
	guarded bool
}

func (e *Engine) newRun(a *actor.Actor, ws *document.Workspace) *run {
	return &run{actor: a, ws: ws, epoch: e.state.epoch, guarded: true}
}

// halted はランを止めるべきかどうか
func (e *Engine) halted(r *run) bool {
	if e.state.stop || r.epoch != e.state.epoch {
		return true
	}
	return r.abort != nil && r.abort()
}

// execute はコマンド列を順に実行する。nested はループ本体の実行
func (e *Engine) execute(r *run, cmds []command.Node, nested bool) {
	for i := range cmds {
		if e.halted(r) {
			return
		}
		cmd := &cmds[i]
		e.refreshArgs(r, cmd)

		op := cmd.Op()
		switch {
		case op.IsPrimitive():
			if !nested && !e.admit(r, cmd.OriginID) {
				continue
			}
			in, err := command.Decode(op, cmd.Args)
			if err != nil {
				e.log.Warn("skipping command", "actor", r.actor.ID, "kind", cmd.Kind, "error", err)
				continue
			}
			e.perform(r, cmd.OriginID, in)
		case op.IsLoop():
			e.loop(r, cmd, op, nested)
		default:
			e.log.Warn("unknown command kind", "actor", r.actor.ID, "kind", cmd.Kind)
		}
	}
}

// admit はガード集合で重複起動を判定する
func (e *Engine) admit(r *run, originID string) bool {
	if !r.guarded || !e.state.EventDriven || originID == "" {
		return true
	}
	return e.guard.admit(r.actor.ID, originID)
}

// refreshArgs は元のブロックの現在のフィールド値で引数を置き換える。
// ブロックが見つからなければコンパイル時の値のまま
func (e *Engine) refreshArgs(r *run, cmd *command.Node) {
	if cmd.OriginID == "" || cmd.OriginKind == "" || r.ws == nil {
		return
	}
	n, ok := r.ws.Resolve(cmd.OriginID)
	if !ok {
		return
	}
	if args, ok := document.LiveArgs(n, cmd.OriginKind); ok {
		cmd.Args = args
	}
}

// loop は繰り返しを実行する。本体は反復のたびにブロックから生成し直す
func (e *Engine) loop(r *run, cmd *command.Node, op command.Op, nested bool) {
	if cmd.OriginID == "" || r.ws == nil {
		return
	}
	if !nested && !e.admit(r, cmd.OriginID) {
		return
	}

	forever := op == command.OpForever
	times := math.Inf(1)
	if !forever {
		in, err := command.Decode(op, cmd.Args)
		if err != nil {
			e.log.Warn("skipping loop", "actor", r.actor.ID, "error", err)
			return
		}
		times = in.(command.Repeat).Times
	}

	for i := 0; float64(i) < times; i++ {
		if e.halted(r) {
			return
		}
		block, ok := r.ws.Resolve(cmd.OriginID)
		if !ok {
			return
		}

		frame := e.sched.Frame()
		body, err := document.Substack(block)
		if err != nil {
			e.log.Warn("skipping loop body", "actor", r.actor.ID, "block", cmd.OriginID, "error", err)
		} else {
			e.execute(r, body, true)
		}

		if forever {
			if e.halted(r) {
				return
			}
			// 本体が一度も待たなかった場合はフレームを待って空回りを防ぐ
			if e.sched.Frame() == frame {
				e.sched.NextFrame()
			} else {
				e.sched.Yield()
			}
		}
	}
}
