package engine

import (
	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/document"
)

// bumpKey は衝突の向き付きの組
type bumpKey struct {
	source string
	target string
}

// scanCollisions は表示中のアクターの全組について当たり判定を行い、
// 重なっていれば両方向の衝突スクリプトを起動する
func (e *Engine) scanCollisions() {
	actors := e.actors.All()
	diameter := e.tuning.Stage.HitboxDiameter
	for i := 0; i < len(actors); i++ {
		for j := i + 1; j < len(actors); j++ {
			a, b := actors[i], actors[j]
			if !a.Pose.Visible || !b.Pose.Visible {
				continue
			}
			if actor.Overlaps(a, b, diameter) {
				e.triggerBump(a, b)
				e.triggerBump(b, a)
			}
		}
	}
}

// triggerBump は source から target への衝突スクリプトを起動する。
// 同じ組で前に起動したランは次の確認点で止まる
func (e *Engine) triggerBump(source, target *actor.Actor) {
	key := bumpKey{source: source.ID, target: target.ID}
	e.bumpGen++
	gen := e.bumpGen
	e.bumps[key] = gen

	if e.pool.get(source) == nil {
		return
	}
	abort := func() bool { return e.bumps[key] != gen }
	epoch := e.state.epoch
	e.sched.Go(func() {
		e.bump(source, target, epoch, abort)
	})
}

func (e *Engine) bump(source, target *actor.Actor, epoch uint64, abort func() bool) {
	if abort() || epoch != e.state.epoch {
		return
	}
	ws := e.pool.get(source)
	if ws == nil {
		return
	}
	e.state.EventDriven = true
	e.guard.reset()
	defer func() {
		e.guard.reset()
		if !e.busy() {
			e.state.EventDriven = false
		}
	}()

	for _, hat := range ws.BlocksByType(document.HatBumped) {
		if abort() {
			return
		}
		if hat.Field(document.FieldSpriteTarget) != target.ID {
			continue
		}
		cmds, err := document.Body(hat)
		if err != nil {
			e.log.Warn("failed to generate bump script", "actor", source.ID, "block", hat.ID(), "error", err)
			continue
		}
		r := &run{actor: source, ws: ws, epoch: epoch, abort: abort, guarded: true}
		e.execute(r, cmds, false)
	}
}
