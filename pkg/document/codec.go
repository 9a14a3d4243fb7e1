package document

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// layoutVersion は保存形式のバージョン
const layoutVersion = 1

type layout struct {
	Version int     `cbor:"v"`
	Blocks  []Block `cbor:"blocks"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("document: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Load は保存済みのスクリプト文書から Workspace を作成する
func Load(blob []byte) (*Workspace, error) {
	var l layout
	if err := cbor.Unmarshal(blob, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if l.Version != layoutVersion {
		return nil, fmt.Errorf("%w: unsupported layout version %d", ErrMalformed, l.Version)
	}
	w := New()
	if err := w.Add(l.Blocks...); err != nil {
		return nil, err
	}
	return w, nil
}

// Save は Workspace をスクリプト文書として保存する。
// 同じ内容からは常に同じバイト列が得られる。
func (w *Workspace) Save() ([]byte, error) {
	if w.Disposed() {
		return nil, ErrDisposed
	}
	blob, err := encMode.Marshal(layout{Version: layoutVersion, Blocks: w.Blocks()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode script document: %w", err)
	}
	return blob, nil
}

// Encode はブロック列を直接スクリプト文書にする
func Encode(blocks []Block) ([]byte, error) {
	w := New()
	if err := w.Add(blocks...); err != nil {
		return nil, err
	}
	return w.Save()
}
