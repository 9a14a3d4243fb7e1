package engine

import (
	"log/slog"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/document"
)

// contextPool はアクターごとの実行コンテキスト（スクリプト文書の複製）を保持する。
// コンテキストは初めて必要になったときに作られ、全停止でのみ破棄される。
type contextPool struct {
	contexts map[string]*document.Workspace
	log      *slog.Logger
}

func newContextPool(log *slog.Logger) *contextPool {
	return &contextPool{
		contexts: make(map[string]*document.Workspace),
		log:      log,
	}
}

// get はアクターの実行コンテキストを返す。スクリプトがなければ nil
func (p *contextPool) get(a *actor.Actor) *document.Workspace {
	if ws, ok := p.contexts[a.ID]; ok {
		return ws
	}
	if len(a.Script) == 0 {
		return nil
	}
	ws, err := document.Load(a.Script)
	if err != nil {
		p.log.Warn("failed to load script", "actor", a.ID, "error", err)
		return nil
	}
	p.contexts[a.ID] = ws
	return ws
}

// lookup は作成済みのコンテキストだけを返す
func (p *contextPool) lookup(actorID string) (*document.Workspace, bool) {
	ws, ok := p.contexts[actorID]
	return ws, ok
}

// reset はすべてのコンテキストを破棄する
func (p *contextPool) reset() {
	for id, ws := range p.contexts {
		ws.Dispose()
		delete(p.contexts, id)
	}
}

func (p *contextPool) len() int {
	return len(p.contexts)
}
