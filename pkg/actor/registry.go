package actor

import (
	"fmt"
	"sync"
)

// Registry はアクターを登録順に保持する
type Registry struct {
	mu     sync.RWMutex
	actors []*Actor
	byID   map[string]*Actor
}

// NewRegistry はレジストリを作成する
func NewRegistry(actors ...*Actor) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Actor)}
	for _, a := range actors {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add はアクターを登録する
func (r *Registry) Add(a *Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("duplicate actor id: %s", a.ID)
	}
	r.actors = append(r.actors, a)
	r.byID[a.ID] = a
	return nil
}

// Get は ID でアクターを取得する
func (r *Registry) Get(id string) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// All は登録順のアクター一覧を返す
func (r *Registry) All() []*Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Actor, len(r.actors))
	copy(out, r.actors)
	return out
}

// Len は登録数を返す
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}
