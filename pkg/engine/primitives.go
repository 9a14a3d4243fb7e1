package engine

import (
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/zurustar/blockstage/pkg/command"
)

// fieldSpeed は移動ブロックの速度フィールド名
const fieldSpeed = "SPEED"

// perform は1つの命令を実行する。時間のかかる命令は待機点ごとに停止を確認する
func (e *Engine) perform(r *run, originID string, in command.Instruction) {
	a := r.actor
	switch in := in.(type) {
	case command.Move:
		e.move(r, originID, in)
	case command.Turn:
		e.turn(r, in)
	case command.SetHeading:
		a.Pose.Heading = in.Degrees
		a.MarkDirty()
	case command.Hop:
		e.hop(r, in.Height)
	case command.Say:
		a.Say(in.Message)
	case command.SayForSecs:
		a.Say(in.Message)
		e.wait(r, seconds(in.Secs))
		if !e.halted(r) {
			a.HideSpeech()
		}
	case command.ChangeSizeBy:
		a.Pose.Size += in.Delta
		a.MarkDirty()
	case command.SetSizeTo:
		a.Pose.Size = in.Size
		a.MarkDirty()
	case command.Show:
		a.Pose.Visible = true
		a.MarkDirty()
	case command.Hide:
		a.Pose.Visible = false
		a.MarkDirty()
	case command.SwitchBackdrop:
		if e.backdrops != nil && !e.backdrops.SwitchBackdrop(in.Backdrop) {
			e.log.Debug("backdrop not found", "backdrop", in.Backdrop)
		}
	case command.Wait:
		e.wait(r, seconds(in.Secs))
	case command.StopScripts:
		e.signalStop()
	case command.PlaySound:
		e.playSound(r, in)
	case command.StopAllSounds:
		e.sounds.StopAll()
	case command.Broadcast:
		e.sched.Yield()
		if !e.halted(r) {
			e.fanOut(in.Channel, true)
		}
	default:
		e.log.Warn("unhandled instruction", "op", in.Op())
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// move は向いている方向に steps だけ、フレームごとの経過時間に応じて進む。
// 速度はフレームごとにブロックから読み直す。最後の1歩は行き過ぎないように切り詰める
func (e *Engine) move(r *run, originID string, m command.Move) {
	if m.Steps == 0 {
		return
	}
	a := r.actor
	rad := a.Pose.Heading * math.Pi / 180
	dirX, dirY := math.Sin(rad), math.Cos(rad)
	sign := math.Copysign(1, m.Steps)
	total := math.Abs(m.Steps)

	speed := m.Speed
	traveled := 0.0
	last := e.sched.Now()
	for traveled < total {
		now := e.sched.NextFrame()
		if e.halted(r) {
			break
		}
		dt := now.Sub(last).Seconds()
		last = now

		speed = e.liveSpeed(r, originID, speed)
		step := e.tuning.Motion.Speed(speed) * dt
		if traveled+step > total {
			step = total - traveled
		}
		traveled += step

		a.Pose.X += sign * step * dirX
		a.Pose.Y += sign * step * dirY
		a.MarkDirty()
	}

	a.WrapEdges(e.tuning.Stage.HalfWidth(), e.tuning.Stage.HalfHeight())
	a.MarkDirty()
}

func (e *Engine) liveSpeed(r *run, originID string, current command.Speed) command.Speed {
	if originID == "" || r.ws == nil {
		return current
	}
	n, ok := r.ws.Resolve(originID)
	if !ok {
		return current
	}
	return command.ParseSpeed(n.Field(fieldSpeed))
}

// turn は一定の角速度で回転する
func (e *Engine) turn(r *run, t command.Turn) {
	if t.Degrees == 0 {
		return
	}
	a := r.actor
	sign := math.Copysign(1, t.Degrees)
	if t.Left {
		sign = -sign
	}
	total := math.Abs(t.Degrees)

	turned := 0.0
	last := e.sched.Now()
	for turned < total {
		now := e.sched.NextFrame()
		if e.halted(r) {
			break
		}
		dt := now.Sub(last).Seconds()
		last = now

		step := e.tuning.Motion.TurnRate * dt
		if turned+step > total {
			step = total - turned
		}
		turned += step
		a.Pose.Heading += sign * step
		a.MarkDirty()
	}
	a.MarkDirty()
}

// hop は放物線を描いて跳ね、元の高さに戻る。停止された場合も元の高さに戻す
func (e *Engine) hop(r *run, height float64) {
	if height <= 0 {
		return
	}
	a := r.actor
	baseY := a.Pose.Y
	defer func() {
		a.Pose.Y = baseY
		a.MarkDirty()
	}()

	half := float32(e.tuning.Motion.HopDuration(height).Seconds() / 2)
	up := gween.New(0, float32(height), half, ease.OutQuad)
	down := gween.New(float32(height), 0, half, ease.InQuad)

	var elapsed, descended float32
	last := e.sched.Now()
	for {
		now := e.sched.NextFrame()
		if e.halted(r) {
			return
		}
		dt := float32(now.Sub(last).Seconds())
		last = now
		elapsed += dt
		if elapsed >= 2*half {
			return
		}

		var offset float32
		if elapsed < half {
			offset, _ = up.Update(dt)
		} else {
			offset, _ = down.Update(elapsed - half - descended)
			descended = elapsed - half
		}
		a.Pose.Y = baseY + float64(offset)
		a.MarkDirty()
	}
}

// wait は d だけ待つ。停止されたら早く戻る
func (e *Engine) wait(r *run, d time.Duration) {
	start := e.sched.Now()
	for !e.halted(r) {
		if e.sched.Now().Sub(start) >= d {
			return
		}
		e.sched.NextFrame()
	}
}

// playSound は音声を再生する。UntilDone なら再生終了まで待ち、
// どの経路で抜けても登録から外す
func (e *Engine) playSound(r *run, p command.PlaySound) {
	if e.loader == nil {
		return
	}
	snd, ok := r.actor.FindSound(p.Sound)
	if !ok {
		e.log.Debug("sound not found", "actor", r.actor.ID, "sound", p.Sound)
		return
	}
	player, err := e.loader.Load(snd.URL)
	if err != nil {
		e.log.Warn("failed to load sound", "actor", r.actor.ID, "sound", p.Sound, "error", err)
		return
	}
	e.sounds.Add(player)
	player.Play()
	if !p.UntilDone {
		return
	}
	defer e.sounds.Release(player)

	for player.IsPlaying() {
		e.sched.NextFrame()
		if e.halted(r) {
			return
		}
	}
}
