package project

import (
	"fmt"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/command"
	"github.com/zurustar/blockstage/pkg/document"
)

// Problem はスクリプト検査で見つかった問題
type Problem struct {
	ActorID string
	BlockID string
	Err     error
}

func (p Problem) Error() string {
	if p.BlockID == "" {
		return fmt.Sprintf("%s: %v", p.ActorID, p.Err)
	}
	return fmt.Sprintf("%s/%s: %v", p.ActorID, p.BlockID, p.Err)
}

// Check は全アクターのスクリプトをコンパイルし、問題を列挙する。
// 実行時には警告して読み飛ばされるものも問題として報告する。
// ブロック ID はアクターごとに独立しており、アクター間の重複は問題にしない。
func Check(actors []*actor.Actor) []Problem {
	var problems []Problem
	for _, a := range actors {
		problems = append(problems, checkActor(a)...)
	}
	return problems
}

func checkActor(a *actor.Actor) []Problem {
	if len(a.Script) == 0 {
		return nil
	}
	ws, err := document.Load(a.Script)
	if err != nil {
		return []Problem{{ActorID: a.ID, Err: err}}
	}
	defer ws.Dispose()

	var problems []Problem
	for _, b := range ws.Blocks() {
		if !document.IsHat(b.Type) {
			continue
		}
		hat, ok := ws.Resolve(b.ID)
		if !ok {
			continue
		}
		cmds, err := document.Body(hat)
		if err != nil {
			problems = append(problems, Problem{ActorID: a.ID, BlockID: b.ID, Err: err})
			continue
		}
		problems = append(problems, checkCommands(a.ID, cmds)...)
	}
	return problems
}

func checkCommands(actorID string, cmds []command.Node) []Problem {
	var problems []Problem
	for _, cmd := range cmds {
		op := cmd.Op()
		if op == command.OpUnknown {
			problems = append(problems, Problem{
				ActorID: actorID,
				BlockID: cmd.OriginID,
				Err:     fmt.Errorf("unknown command kind %q", cmd.Kind),
			})
			continue
		}
		if _, err := command.Decode(op, cmd.Args); err != nil {
			problems = append(problems, Problem{ActorID: actorID, BlockID: cmd.OriginID, Err: err})
		}
		problems = append(problems, checkCommands(actorID, cmd.Children)...)
	}
	return problems
}
