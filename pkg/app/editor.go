package app

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/bridge"
	"github.com/zurustar/blockstage/pkg/document"
	"github.com/zurustar/blockstage/pkg/engine"
)

var errNoEngine = errors.New("editor is not attached to an engine")

// editSession は遠隔編集を受けて、編集中のアクターの文書を1つ持つ。
// 実行中のランへの反映はエンジンの EditField に任せ、
// 文書の書き戻しはエンジンが ActiveDocument を読んで行う。
type editSession struct {
	actors *actor.Registry
	store  engine.DocumentStore
	log    *slog.Logger

	mu      sync.Mutex
	engine  *engine.Engine
	actorID string
	ws      *document.Workspace
}

func newEditSession(actors *actor.Registry, log *slog.Logger) *editSession {
	return &editSession{actors: actors, log: log}
}

func (s *editSession) attach(e *engine.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = e
}

// ActiveDocument はスケジューラの実行権を持ったまま呼ばれる
func (s *editSession) ActiveDocument() (string, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws == nil {
		return "", nil, false
	}
	blob, err := s.ws.Save()
	if err != nil {
		return "", nil, false
	}
	return s.actorID, blob, true
}

// ApplyEdit は編集をエンジンと手元の文書の両方に反映する。
// エンジンを呼ぶ間は mu を持たない（ActiveDocument と競合するため）
func (s *editSession) ApplyEdit(ed bridge.Edit) error {
	s.mu.Lock()
	e := s.engine
	s.mu.Unlock()
	if e == nil {
		return errNoEngine
	}

	if err := e.EditField(ed.Actor, ed.Block, ed.Field, ed.Value); err != nil {
		return err
	}

	s.mu.Lock()
	if s.ws != nil && s.actorID == ed.Actor {
		err := s.ws.SetField(ed.Block, ed.Field, ed.Value)
		s.mu.Unlock()
		return err
	}
	prevID, prev := s.actorID, s.ws
	s.actorID, s.ws = "", nil
	s.mu.Unlock()

	if prev != nil {
		s.flush(e, prevID, prev)
	}

	var blob []byte
	e.View(func() {
		if a, ok := s.actors.Get(ed.Actor); ok {
			blob = a.Script
		}
	})
	ws, err := document.Load(blob)
	if err != nil {
		return err
	}
	if err := ws.SetField(ed.Block, ed.Field, ed.Value); err != nil {
		ws.Dispose()
		return err
	}

	s.mu.Lock()
	s.actorID, s.ws = ed.Actor, ws
	s.mu.Unlock()
	return nil
}

// flush は編集対象から外れた文書をアクターに書き戻して保存する
func (s *editSession) flush(e *engine.Engine, actorID string, ws *document.Workspace) {
	blob, err := ws.Save()
	ws.Dispose()
	if err != nil {
		s.log.Warn("Failed to encode script", "actor", actorID, "error", err)
		return
	}
	e.View(func() {
		if a, ok := s.actors.Get(actorID); ok {
			a.Script = blob
		}
	})
	if s.store != nil {
		if err := s.store.SaveDocument(actorID, blob); err != nil {
			s.log.Warn("Failed to save script", "actor", actorID, "error", err)
		}
	}
}
