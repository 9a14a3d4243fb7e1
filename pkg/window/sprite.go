package window

import (
	"math"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/config"
)

// Sprite はアクター1体分の描画情報。エンジンのバトンの内側で作り、外側で描く
type Sprite struct {
	ID      string
	Costume string
	Frame   int
	// X, Y は画面座標（左上原点、y は下向き）
	X, Y float64
	// Angle は画面上の回転量（ラジアン、時計回り）
	Angle  float64
	Scale  float64
	FlipX  bool
	Hue    float64
	Radius float64
	Speech string
}

// Collect は表示中のアクターの描画情報を登録順に集める
func Collect(actors []*actor.Actor, st config.Stage) []Sprite {
	sprites := make([]Sprite, 0, len(actors))
	for _, a := range actors {
		if !a.Pose.Visible {
			continue
		}
		x, y := StageToScreen(a.Pose.X, a.Pose.Y, st)
		s := Sprite{
			ID:      a.ID,
			Costume: a.Costume,
			Frame:   a.Animation.Index,
			X:       x,
			Y:       y,
			Scale:   a.Pose.Size / 100,
			Hue:     a.Hue,
			Radius:  a.Radius(st.HitboxDiameter),
		}
		switch a.Rotation {
		case actor.RotateAllAround:
			// 向き 90（右）が回転なし
			s.Angle = (a.Pose.Heading - 90) * math.Pi / 180
		case actor.RotateLeftRight:
			s.FlipX = a.Flipped()
		}
		if a.Speech.Visible {
			s.Speech = a.Speech.Text
		}
		sprites = append(sprites, s)
	}
	return sprites
}

// StageToScreen はステージ座標を画面座標に変換する
func StageToScreen(x, y float64, st config.Stage) (float64, float64) {
	return x + st.HalfWidth(), st.HalfHeight() - y
}

// ScreenToStage は画面座標をステージ座標に変換する
func ScreenToStage(sx, sy int, st config.Stage) (float64, float64) {
	return float64(sx) - st.HalfWidth(), st.HalfHeight() - float64(sy)
}

// HitTest はステージ座標 (x, y) にある最前面（登録順で最後）の表示中アクターを返す
func HitTest(actors []*actor.Actor, x, y, baseDiameter float64) (string, bool) {
	for i := len(actors) - 1; i >= 0; i-- {
		a := actors[i]
		if a.Pose.Visible && a.Contains(x, y, baseDiameter) {
			return a.ID, true
		}
	}
	return "", false
}
