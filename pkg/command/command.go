// Package command はコンパイル済みスクリプトのコマンドモデルを定義する。
//
// スクリプトは Node の順序付きリストとして表現される。ループ系の Node は
// Children に本体を持つ。実行時には Kind を閉じた列挙型 Op に変換し、
// 引数を Decode で型付きの Instruction に変換してからディスパッチする。
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedArgument は数値が必要な引数に数値以外が渡された場合のエラー
var ErrMalformedArgument = errors.New("malformed argument")

// Node はコンパイル済みスクリプトの1命令を表す
type Node struct {
	Kind       string   `cbor:"kind" yaml:"kind"`
	Args       []string `cbor:"args,omitempty" yaml:"args,omitempty"`
	Children   []Node   `cbor:"children,omitempty" yaml:"children,omitempty"`
	OriginID   string   `cbor:"origin_id,omitempty" yaml:"origin_id,omitempty"`
	OriginKind string   `cbor:"origin_kind,omitempty" yaml:"origin_kind,omitempty"`
}

// Op は Node.Kind を列挙型に変換したもの
func (n Node) Op() Op {
	return ParseKind(n.Kind)
}

// Arg は i 番目の引数を返す。存在しない場合は空文字列
func (n Node) Arg(i int) string {
	if i < 0 || i >= len(n.Args) {
		return ""
	}
	return n.Args[i]
}

// Op は命令の種類
type Op int

const (
	OpUnknown Op = iota
	OpMoveSteps
	OpTurnRight
	OpTurnLeft
	OpSetHeading
	OpHop
	OpSay
	OpSayForSecs
	OpChangeSizeBy
	OpSetSizeTo
	OpShow
	OpHide
	OpSwitchBackdrop
	OpWait
	OpStopScripts
	OpPlaySound
	OpPlaySoundUntilDone
	OpStopAllSounds
	OpBroadcast
	OpRepeat
	OpForever
)

// Kind 文字列。コード生成器が出力し、インタプリタが解釈する
const (
	KindMoveSteps          = "api.move_steps"
	KindTurnRight          = "api.turn_right"
	KindTurnLeft           = "api.turn_left"
	KindSetHeading         = "api.set_heading"
	KindHop                = "api.hop"
	KindSay                = "api.say"
	KindSayForSecs         = "api.say_for_secs"
	KindChangeSizeBy       = "api.change_size_by"
	KindSetSizeTo          = "api.set_size_to"
	KindShow               = "api.show"
	KindHide               = "api.hide"
	KindSwitchBackdrop     = "api.switch_backdrop"
	KindWait               = "api.wait"
	KindStopScripts        = "api.stop_scripts"
	KindPlaySound          = "api.play_sound"
	KindPlaySoundUntilDone = "api.play_sound_until_done"
	KindStopAllSounds      = "api.stop_all_sounds"
	KindBroadcast          = "api.send_envelope"
	KindRepeat             = "control.repeat"
	KindForever            = "control.forever"
)

var kindToOp = map[string]Op{
	KindMoveSteps:          OpMoveSteps,
	KindTurnRight:          OpTurnRight,
	KindTurnLeft:           OpTurnLeft,
	KindSetHeading:         OpSetHeading,
	KindHop:                OpHop,
	KindSay:                OpSay,
	KindSayForSecs:         OpSayForSecs,
	KindChangeSizeBy:       OpChangeSizeBy,
	KindSetSizeTo:          OpSetSizeTo,
	KindShow:               OpShow,
	KindHide:               OpHide,
	KindSwitchBackdrop:     OpSwitchBackdrop,
	KindWait:               OpWait,
	KindStopScripts:        OpStopScripts,
	KindPlaySound:          OpPlaySound,
	KindPlaySoundUntilDone: OpPlaySoundUntilDone,
	KindStopAllSounds:      OpStopAllSounds,
	KindBroadcast:          OpBroadcast,
	KindRepeat:             OpRepeat,
	KindForever:            OpForever,
}

var opToKind = func() map[Op]string {
	m := make(map[Op]string, len(kindToOp))
	for k, op := range kindToOp {
		m[op] = k
	}
	return m
}()

// ParseKind は Kind 文字列を Op に変換する。未知の場合は OpUnknown
func ParseKind(kind string) Op {
	if op, ok := kindToOp[kind]; ok {
		return op
	}
	return OpUnknown
}

// Kind は Op に対応する Kind 文字列を返す
func (o Op) Kind() string {
	return opToKind[o]
}

func (o Op) String() string {
	if k, ok := opToKind[o]; ok {
		return k
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsLoop はループ系の命令かどうか
func (o Op) IsLoop() bool {
	return o == OpRepeat || o == OpForever
}

// IsPrimitive はプリミティブ操作かどうか
func (o Op) IsPrimitive() bool {
	return o != OpUnknown && !o.IsLoop()
}

// Speed は移動速度の指定
type Speed string

const (
	SpeedSlow   Speed = "slow"
	SpeedMedium Speed = "medium"
	SpeedFast   Speed = "fast"
)

// ParseSpeed は速度指定を解釈する。不明な値は medium とみなす
func ParseSpeed(s string) Speed {
	switch Speed(strings.ToLower(strings.TrimSpace(s))) {
	case SpeedSlow:
		return SpeedSlow
	case SpeedFast:
		return SpeedFast
	default:
		return SpeedMedium
	}
}

// ParseNumber は数値らしい文字列を float64 に変換する
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
