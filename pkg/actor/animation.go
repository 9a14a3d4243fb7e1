package actor

import "time"

// defaultFrameDelay は遅延が指定されていないフレームの表示時間
const defaultFrameDelay = 100 * time.Millisecond

// Animation はアニメーション画像のフレーム進行状態
type Animation struct {
	Delays []time.Duration
	Index  int
	acc    time.Duration
}

// Advance は経過時間 dt だけアニメーションを進める。
// 1回の呼び出しで進むのは最大1フレーム。フレームが変わったら true
func (a *Actor) Advance(dt time.Duration) bool {
	anim := &a.Animation
	if len(anim.Delays) == 0 || !a.Pose.Visible || a.AnimationRate <= 0 {
		return false
	}
	anim.acc += dt

	delay := anim.Delays[anim.Index]
	if delay <= 10*time.Millisecond {
		delay = defaultFrameDelay
	}
	delay = time.Duration(float64(delay) / a.AnimationRate)

	if anim.acc < delay {
		return false
	}
	anim.acc -= delay
	anim.Index = (anim.Index + 1) % len(anim.Delays)
	a.dirty = true
	return true
}
