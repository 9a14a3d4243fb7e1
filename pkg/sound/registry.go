// Package sound はアクターの音声再生を扱う。
//
// 再生中の音声は Registry に登録され、停止要求で一括停止できる。
// 再生終了・停止・エラーのどの経路でも登録は取り除かれる。
package sound

import (
	"slices"
	"sync"
)

// Player は1つの再生ストリーム。*audio.Player はこのインターフェースを満たす
type Player interface {
	Play()
	Pause()
	Rewind() error
	IsPlaying() bool
	Close() error
}

// Loader は音声アセットから Player を作る
type Loader interface {
	Load(url string) (Player, error)
}

// Registry は再生中の音声の一覧
type Registry struct {
	mu      sync.Mutex
	players []Player
}

// NewRegistry は空の Registry を作成する
func NewRegistry() *Registry {
	return &Registry{}
}

// Add は再生中の音声を登録する
func (r *Registry) Add(p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = append(r.players, p)
}

// Release は音声を登録から外して解放する。登録されていなければ何もしない
func (r *Registry) Release(p Player) {
	r.mu.Lock()
	idx := slices.Index(r.players, p)
	if idx >= 0 {
		r.players = slices.Delete(r.players, idx, idx+1)
	}
	r.mu.Unlock()

	if idx >= 0 {
		p.Pause()
		_ = p.Close()
	}
}

// StopAll はすべての音声を一時停止して先頭に戻し、登録を空にする
func (r *Registry) StopAll() {
	r.mu.Lock()
	players := r.players
	r.players = nil
	r.mu.Unlock()

	for _, p := range players {
		p.Pause()
		_ = p.Rewind()
		_ = p.Close()
	}
}

// Sweep は再生が終わった音声を登録から外して解放する
func (r *Registry) Sweep() {
	r.mu.Lock()
	var finished []Player
	active := r.players[:0]
	for _, p := range r.players {
		if p.IsPlaying() {
			active = append(active, p)
		} else {
			finished = append(finished, p)
		}
	}
	clear(r.players[len(active):])
	r.players = active
	r.mu.Unlock()

	for _, p := range finished {
		_ = p.Close()
	}
}

// Len は登録数を返す
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}
