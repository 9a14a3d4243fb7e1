// Package document はアクターごとのスクリプト文書（ブロックの集合）を扱う。
//
// Workspace は永続化されたスクリプト文書をメモリ上に展開したもので、
// 実行中のスクリプトはここからパラメータを読み直す。
package document

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrMalformed は文書の構造が壊れている場合のエラー
	ErrMalformed = errors.New("malformed script document")
	// ErrDisposed は破棄済みの Workspace を操作した場合のエラー
	ErrDisposed = errors.New("workspace disposed")
	// ErrNotFound は指定IDのブロックが存在しない場合のエラー
	ErrNotFound = errors.New("block not found")
)

// Block はスクリプト文書の1ブロック
type Block struct {
	ID     string            `cbor:"id" yaml:"id"`
	Type   string            `cbor:"type" yaml:"type"`
	Fields map[string]string `cbor:"fields,omitempty" yaml:"fields,omitempty"`
	Next   string            `cbor:"next,omitempty" yaml:"next,omitempty"`
	Inputs map[string]string `cbor:"inputs,omitempty" yaml:"inputs,omitempty"`
}

func (b Block) clone() *Block {
	c := b
	if b.Fields != nil {
		c.Fields = make(map[string]string, len(b.Fields))
		for k, v := range b.Fields {
			c.Fields[k] = v
		}
	}
	if b.Inputs != nil {
		c.Inputs = make(map[string]string, len(b.Inputs))
		for k, v := range b.Inputs {
			c.Inputs[k] = v
		}
	}
	return &c
}

// Node はライブに読み直せるブロックへのハンドル
type Node interface {
	ID() string
	Type() string
	// Field はフィールドの現在値を返す。存在しなければ空文字列
	Field(name string) string
	Next() (Node, bool)
	Input(name string) (Node, bool)
}

// Source は ID からライブなブロックを解決する
type Source interface {
	Resolve(id string) (Node, bool)
}

// Workspace はスクリプト文書のインメモリ表現
type Workspace struct {
	mu       sync.RWMutex
	blocks   map[string]*Block
	order    []string
	disposed bool
}

// New は空の Workspace を作成する
func New() *Workspace {
	return &Workspace{blocks: make(map[string]*Block)}
}

// Add はブロックを追加する
func (w *Workspace) Add(blocks ...Block) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return ErrDisposed
	}
	for _, b := range blocks {
		if b.ID == "" {
			return fmt.Errorf("%w: block without id (type %s)", ErrMalformed, b.Type)
		}
		if _, exists := w.blocks[b.ID]; exists {
			return fmt.Errorf("%w: duplicate block id %s", ErrMalformed, b.ID)
		}
		w.blocks[b.ID] = b.clone()
		w.order = append(w.order, b.ID)
	}
	return nil
}

// Remove はブロックを削除する。参照しているリンクはそのまま残る
func (w *Workspace) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.blocks[id]; !ok {
		return
	}
	delete(w.blocks, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// SetField はフィールド値を書き換える（実行中の編集）
func (w *Workspace) SetField(id, field, value string) error {
	return w.update(id, func(b *Block) {
		if b.Fields == nil {
			b.Fields = make(map[string]string)
		}
		b.Fields[field] = value
	})
}

// SetNext は後続ブロックをつなぎ替える。空文字列で切断
func (w *Workspace) SetNext(id, next string) error {
	return w.update(id, func(b *Block) { b.Next = next })
}

// SetInput は文入力（SUBSTACK など）の先頭ブロックをつなぎ替える
func (w *Workspace) SetInput(id, input, child string) error {
	return w.update(id, func(b *Block) {
		if child == "" {
			delete(b.Inputs, input)
			return
		}
		if b.Inputs == nil {
			b.Inputs = make(map[string]string)
		}
		b.Inputs[input] = child
	})
}

func (w *Workspace) update(id string, fn func(*Block)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return ErrDisposed
	}
	b, ok := w.blocks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(b)
	return nil
}

// Resolve は ID のブロックを返す。破棄済みまたは存在しなければ false
func (w *Workspace) Resolve(id string) (Node, bool) {
	if id == "" {
		return nil, false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.disposed {
		return nil, false
	}
	if _, ok := w.blocks[id]; !ok {
		return nil, false
	}
	return blockRef{ws: w, id: id}, true
}

// BlocksByType は指定タイプのブロックを文書順に返す
func (w *Workspace) BlocksByType(typ string) []Node {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.disposed {
		return nil
	}
	var nodes []Node
	for _, id := range w.order {
		if w.blocks[id].Type == typ {
			nodes = append(nodes, blockRef{ws: w, id: id})
		}
	}
	return nodes
}

// Blocks は全ブロックのコピーを文書順に返す
func (w *Workspace) Blocks() []Block {
	w.mu.RLock()
	defer w.mu.RUnlock()

	blocks := make([]Block, 0, len(w.order))
	for _, id := range w.order {
		blocks = append(blocks, *w.blocks[id].clone())
	}
	return blocks
}

// Dispose は Workspace を破棄する。以降の Resolve はすべて失敗する
func (w *Workspace) Dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.disposed = true
	w.blocks = make(map[string]*Block)
	w.order = nil
}

// Disposed は破棄済みかどうかを返す
func (w *Workspace) Disposed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.disposed
}

func (w *Workspace) lookup(id string) (*Block, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.disposed {
		return nil, false
	}
	b, ok := w.blocks[id]
	return b, ok
}

// blockRef は Workspace 上のブロックを ID で参照する。
// 読み出しのたびに Workspace を引き直すため、編集や破棄が即座に反映される。
type blockRef struct {
	ws *Workspace
	id string
}

func (r blockRef) ID() string { return r.id }

func (r blockRef) Type() string {
	b, ok := r.ws.lookup(r.id)
	if !ok {
		return ""
	}
	return b.Type
}

func (r blockRef) Field(name string) string {
	r.ws.mu.RLock()
	defer r.ws.mu.RUnlock()

	b, ok := r.ws.blocks[r.id]
	if !ok || r.ws.disposed {
		return ""
	}
	return b.Fields[name]
}

func (r blockRef) Next() (Node, bool) {
	b, ok := r.ws.lookup(r.id)
	if !ok {
		return nil, false
	}
	return r.ws.Resolve(b.Next)
}

func (r blockRef) Input(name string) (Node, bool) {
	r.ws.mu.RLock()
	b, ok := r.ws.blocks[r.id]
	var child string
	if ok && !r.ws.disposed {
		child = b.Inputs[name]
	}
	r.ws.mu.RUnlock()
	return r.ws.Resolve(child)
}
