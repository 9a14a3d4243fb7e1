package command

import "fmt"

// Instruction は型付き引数を持つ命令
type Instruction interface {
	Op() Op
}

type Move struct {
	Steps float64
	Speed Speed
}

// Turn は Left が true の場合に左回転
type Turn struct {
	Degrees float64
	Left    bool
}

type SetHeading struct{ Degrees float64 }

type Hop struct{ Height float64 }

type Say struct{ Message string }

type SayForSecs struct {
	Message string
	Secs    float64
}

type ChangeSizeBy struct{ Delta float64 }

type SetSizeTo struct{ Size float64 }

type Show struct{}

type Hide struct{}

type SwitchBackdrop struct{ Backdrop string }

type Wait struct{ Secs float64 }

type StopScripts struct{}

type PlaySound struct {
	Sound     string
	UntilDone bool
}

type StopAllSounds struct{}

type Broadcast struct{ Channel string }

type Repeat struct{ Times float64 }

type Forever struct{}

func (Move) Op() Op { return OpMoveSteps }
func (t Turn) Op() Op {
	if t.Left {
		return OpTurnLeft
	}
	return OpTurnRight
}
func (SetHeading) Op() Op { return OpSetHeading }
func (Hop) Op() Op { return OpHop }
func (Say) Op() Op { return OpSay }
func (SayForSecs) Op() Op { return OpSayForSecs }
func (ChangeSizeBy) Op() Op { return OpChangeSizeBy }
func (SetSizeTo) Op() Op { return OpSetSizeTo }
func (Show) Op() Op { return OpShow }
func (Hide) Op() Op { return OpHide }
func (SwitchBackdrop) Op() Op { return OpSwitchBackdrop }
func (Wait) Op() Op { return OpWait }
func (StopScripts) Op() Op { return OpStopScripts }
func (p PlaySound) Op() Op {
	if p.UntilDone {
		return OpPlaySoundUntilDone
	}
	return OpPlaySound
}
func (StopAllSounds) Op() Op { return OpStopAllSounds }
func (Broadcast) Op() Op { return OpBroadcast }
func (Repeat) Op() Op { return OpRepeat }
func (Forever) Op() Op { return OpForever }

// Decode は文字列引数を Op に対応する Instruction に変換する。
// 数値が必要な位置に数値以外があれば ErrMalformedArgument を返す。
// 文字列引数（メッセージ、音名など）はそのまま渡す。
func Decode(op Op, args []string) (Instruction, error) {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	num := func(i int) (float64, error) {
		v, ok := ParseNumber(arg(i))
		if !ok {
			return 0, fmt.Errorf("%w: %s arg %d = %q", ErrMalformedArgument, op, i, arg(i))
		}
		return v, nil
	}

	switch op {
	case OpMoveSteps:
		steps, err := num(0)
		if err != nil {
			return nil, err
		}
		return Move{Steps: steps, Speed: ParseSpeed(arg(1))}, nil
	case OpTurnRight, OpTurnLeft:
		deg, err := num(0)
		if err != nil {
			return nil, err
		}
		return Turn{Degrees: deg, Left: op == OpTurnLeft}, nil
	case OpSetHeading:
		deg, err := num(0)
		if err != nil {
			return nil, err
		}
		return SetHeading{Degrees: deg}, nil
	case OpHop:
		h, err := num(0)
		if err != nil {
			return nil, err
		}
		return Hop{Height: h}, nil
	case OpSay:
		return Say{Message: arg(0)}, nil
	case OpSayForSecs:
		// 秒数が読めない場合は表示だけ行う
		secs, _ := ParseNumber(arg(1))
		return SayForSecs{Message: arg(0), Secs: secs}, nil
	case OpChangeSizeBy:
		d, err := num(0)
		if err != nil {
			return nil, err
		}
		return ChangeSizeBy{Delta: d}, nil
	case OpSetSizeTo:
		s, err := num(0)
		if err != nil {
			return nil, err
		}
		return SetSizeTo{Size: s}, nil
	case OpShow:
		return Show{}, nil
	case OpHide:
		return Hide{}, nil
	case OpSwitchBackdrop:
		return SwitchBackdrop{Backdrop: arg(0)}, nil
	case OpWait:
		secs, err := num(0)
		if err != nil {
			return nil, err
		}
		return Wait{Secs: secs}, nil
	case OpStopScripts:
		return StopScripts{}, nil
	case OpPlaySound, OpPlaySoundUntilDone:
		return PlaySound{Sound: arg(0), UntilDone: op == OpPlaySoundUntilDone}, nil
	case OpStopAllSounds:
		return StopAllSounds{}, nil
	case OpBroadcast:
		return Broadcast{Channel: arg(0)}, nil
	case OpRepeat:
		n, err := num(0)
		if err != nil {
			return nil, err
		}
		return Repeat{Times: n}, nil
	case OpForever:
		return Forever{}, nil
	}
	return nil, fmt.Errorf("unknown command kind: %s", op)
}
