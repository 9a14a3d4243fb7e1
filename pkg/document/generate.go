package document

import (
	"fmt"
	"strconv"

	"github.com/zurustar/blockstage/pkg/command"
)

// イベントブロック（スクリプトの起点）のタイプ
const (
	HatGoClicked      = "event_when_go_clicked"
	HatActorClicked   = "event_when_this_sprite_clicked"
	HatKeyPressed     = "event_when_key_pressed"
	HatBumped         = "event_when_bumping_sprite"
	HatColorUnder     = "event_when_color_under"
	HatEnvelopeRecv   = "event_when_envelope_received"
	BlockSendEnvelope = "event_send_envelope"
)

// フィールド名と文入力名
const (
	FieldKeyOption       = "KEY_OPTION"
	FieldSpriteTarget    = "SPRITE_TARGET"
	FieldColor           = "COLOR"
	FieldEnvelopeChannel = "ENVELOPE_CHANNEL"
	InputSubstack        = "SUBSTACK"
)

// blockSpec はブロックタイプからコマンドへの変換規則
type blockSpec struct {
	kind   string
	fields []string
	// negate は最初の数値フィールドの符号を反転する（縮小ブロック）
	negate   bool
	substack bool
	// terminal は後続ブロックを持たない
	terminal bool
}

var blockSpecs = map[string]blockSpec{
	"motion_movesteps":     {kind: command.KindMoveSteps, fields: []string{"STEPS", "SPEED"}},
	"motion_turnright":     {kind: command.KindTurnRight, fields: []string{"DEGREES"}},
	"motion_turnleft":      {kind: command.KindTurnLeft, fields: []string{"DEGREES"}},
	"motion_setheading":    {kind: command.KindSetHeading, fields: []string{"DEGREES"}},
	"motion_hop":           {kind: command.KindHop, fields: []string{"HEIGHT"}},
	"looks_say":            {kind: command.KindSay, fields: []string{"MESSAGE"}},
	"looks_sayforsecs":     {kind: command.KindSayForSecs, fields: []string{"MESSAGE", "SECS"}},
	"looks_changesizeby":   {kind: command.KindChangeSizeBy, fields: []string{"DELTA"}},
	"looks_shrinkby":       {kind: command.KindChangeSizeBy, fields: []string{"DELTA"}, negate: true},
	"looks_setsizeto":      {kind: command.KindSetSizeTo, fields: []string{"SIZE"}},
	"looks_show":           {kind: command.KindShow},
	"looks_hide":           {kind: command.KindHide},
	"looks_switchbackdrop": {kind: command.KindSwitchBackdrop, fields: []string{"BACKDROP"}},
	"control_wait":         {kind: command.KindWait, fields: []string{"SECS"}},
	"control_repeat":       {kind: command.KindRepeat, fields: []string{"TIMES"}, substack: true},
	"control_forever":      {kind: command.KindForever, substack: true, terminal: true},
	"control_stop":         {kind: command.KindStopScripts, terminal: true},
	"sound_play":           {kind: command.KindPlaySound, fields: []string{"SOUND_MENU"}},
	"sound_playuntildone":  {kind: command.KindPlaySoundUntilDone, fields: []string{"SOUND_MENU"}},
	"sound_stopallsounds":  {kind: command.KindStopAllSounds},
	BlockSendEnvelope:      {kind: command.KindBroadcast, fields: []string{FieldEnvelopeChannel}},
}

// IsHat はイベントブロックかどうか
func IsHat(typ string) bool {
	switch typ {
	case HatGoClicked, HatActorClicked, HatKeyPressed, HatBumped, HatColorUnder, HatEnvelopeRecv:
		return true
	}
	return false
}

// Body はイベントブロックの下につながるスクリプトを生成する
func Body(hat Node) ([]command.Node, error) {
	next, ok := hat.Next()
	if !ok {
		return nil, nil
	}
	return Generate(next)
}

// Substack はループブロックの本体を生成する
func Substack(loop Node) ([]command.Node, error) {
	first, ok := loop.Input(InputSubstack)
	if !ok {
		return nil, nil
	}
	return Generate(first)
}

// Generate は start から後続をたどってコマンド列を生成する
func Generate(start Node) ([]command.Node, error) {
	return generate(start, make(map[string]bool))
}

func generate(start Node, visited map[string]bool) ([]command.Node, error) {
	var cmds []command.Node
	for n, ok := start, true; ok; n, ok = n.Next() {
		if visited[n.ID()] {
			return nil, fmt.Errorf("%w: cycle at block %s", ErrMalformed, n.ID())
		}
		visited[n.ID()] = true

		typ := n.Type()
		spec, known := blockSpecs[typ]
		if !known {
			// 未知のブロックはそのままの種類で出力し、実行時に警告して読み飛ばす
			cmds = append(cmds, command.Node{Kind: typ, OriginID: n.ID(), OriginKind: typ})
			continue
		}

		cmd := command.Node{
			Kind:       spec.kind,
			Args:       fieldArgs(n, spec),
			OriginID:   n.ID(),
			OriginKind: typ,
		}
		if spec.substack {
			if first, ok := n.Input(InputSubstack); ok {
				children, err := generate(first, visited)
				if err != nil {
					return nil, err
				}
				cmd.Children = children
			}
		}
		cmds = append(cmds, cmd)
		if spec.terminal {
			break
		}
	}
	return cmds, nil
}

// LiveArgs はブロックの現在のフィールド値から引数を組み立てる。
// ライブ更新の対象でないブロックタイプでは false を返す。
func LiveArgs(n Node, originKind string) ([]string, bool) {
	spec, ok := blockSpecs[originKind]
	if !ok || len(spec.fields) == 0 {
		return nil, false
	}
	return fieldArgs(n, spec), true
}

func fieldArgs(n Node, spec blockSpec) []string {
	if len(spec.fields) == 0 {
		return nil
	}
	args := make([]string, len(spec.fields))
	for i, f := range spec.fields {
		args[i] = n.Field(f)
	}
	if spec.negate {
		args[0] = negate(args[0])
	}
	return args
}

func negate(s string) string {
	v, ok := command.ParseNumber(s)
	if !ok {
		return s
	}
	return strconv.FormatFloat(-v, 'f', -1, 64)
}
