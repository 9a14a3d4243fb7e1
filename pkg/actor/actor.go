// Package actor はステージ上のアクター（キャラクター）を表現する。
//
// アクターの生成と破棄はアプリケーション側のレジストリが行い、
// 実行エンジンは姿勢の読み書きとスクリプトの読み出しだけを行う。
package actor

import (
	"math"
	"strings"
)

// RotationMode はアクターの向きの描画方法
type RotationMode string

const (
	RotateAllAround RotationMode = "all-around"
	RotateLeftRight RotationMode = "left-right"
	RotateNone      RotationMode = "none"
)

// ParseRotationMode は回転モードを解釈する。不明な値は all-around
func ParseRotationMode(s string) RotationMode {
	switch RotationMode(strings.ToLower(strings.TrimSpace(s))) {
	case RotateLeftRight:
		return RotateLeftRight
	case RotateNone:
		return RotateNone
	default:
		return RotateAllAround
	}
}

// Pose はアクターの位置と姿勢
// 座標系はステージ中央が原点、y は上向き。Heading は 0 が上、90 が右
type Pose struct {
	X       float64
	Y       float64
	Heading float64
	Size    float64 // パーセント
	Visible bool
}

// Sound はアクターが持つ音声アセット
type Sound struct {
	Name string
	URL  string
}

// Speech は吹き出しの状態
type Speech struct {
	Text    string
	Visible bool
}

// Actor はステージ上のキャラクター
type Actor struct {
	ID       string
	Name     string
	Pose     Pose
	Rotation RotationMode
	// AnimationRate はアニメーション再生速度の倍率
	AnimationRate float64
	// Hue は色相の回転量（度）
	Hue     float64
	Costume string
	Sounds  []Sound
	// Script は永続化されたスクリプト文書。エンジンからは不透明
	Script    []byte
	Animation Animation
	Speech    Speech

	dirty bool
}

// New はデフォルトの姿勢でアクターを作成する
func New(id, name string) *Actor {
	return &Actor{
		ID:            id,
		Name:          name,
		Pose:          Pose{Heading: 90, Size: 100, Visible: true},
		Rotation:      RotateAllAround,
		AnimationRate: 1,
	}
}

// MarkDirty は次のフレームで再描画が必要であることを記録する
func (a *Actor) MarkDirty() {
	a.dirty = true
}

// TakeDirty は再描画要求を取り出してクリアする
func (a *Actor) TakeDirty() bool {
	d := a.dirty
	a.dirty = false
	return d
}

// FindSound は名前で音声アセットを探す
func (a *Actor) FindSound(name string) (Sound, bool) {
	for _, s := range a.Sounds {
		if s.Name == name {
			return s, true
		}
	}
	return Sound{}, false
}

// Say は吹き出しを表示する
func (a *Actor) Say(text string) {
	a.Speech = Speech{Text: text, Visible: true}
	a.dirty = true
}

// HideSpeech は吹き出しを隠す
func (a *Actor) HideSpeech() {
	if !a.Speech.Visible {
		return
	}
	a.Speech.Visible = false
	a.dirty = true
}

// WrapEdges はステージ外に出たアクターを反対側の端に移す。
// halfW, halfH はステージの半幅と半高。移動した場合 true を返す
func (a *Actor) WrapEdges(halfW, halfH float64) bool {
	wrapped := false
	switch {
	case a.Pose.X > halfW:
		a.Pose.X = -halfW
		wrapped = true
	case a.Pose.X < -halfW:
		a.Pose.X = halfW
		wrapped = true
	}
	switch {
	case a.Pose.Y > halfH:
		a.Pose.Y = -halfH
		wrapped = true
	case a.Pose.Y < -halfH:
		a.Pose.Y = halfH
		wrapped = true
	}
	if wrapped {
		a.dirty = true
	}
	return wrapped
}

// Radius は当たり判定円の半径。baseDiameter は大きさ100%のときの直径
func (a *Actor) Radius(baseDiameter float64) float64 {
	return baseDiameter / 2 * a.Pose.Size / 100
}

// Overlaps は2つのアクターの当たり判定円が重なっているかを返す
func Overlaps(a, b *Actor, baseDiameter float64) bool {
	dx := a.Pose.X - b.Pose.X
	dy := a.Pose.Y - b.Pose.Y
	r := a.Radius(baseDiameter) + b.Radius(baseDiameter)
	return dx*dx+dy*dy < r*r
}

// Contains はステージ座標 (x, y) が当たり判定円の内側にあるかを返す
func (a *Actor) Contains(x, y, baseDiameter float64) bool {
	r := a.Radius(baseDiameter)
	return math.Hypot(x-a.Pose.X, y-a.Pose.Y) <= r
}

// Flipped は left-right モードで左向きに描画すべきかを返す
func (a *Actor) Flipped() bool {
	if a.Rotation != RotateLeftRight {
		return false
	}
	h := math.Mod(math.Mod(a.Pose.Heading, 360)+360, 360)
	return h > 180
}
