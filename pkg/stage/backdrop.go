package stage

import (
	"image"
	"sync"
)

// Backdrop はステージ背景
type Backdrop struct {
	Name  string
	URL   string
	Image image.Image
}

// Backdrops は背景ライブラリと現在の背景を管理する
type Backdrops struct {
	mu       sync.RWMutex
	list     []Backdrop
	current  int
	sampler  *Sampler
	onChange func(Backdrop)
}

// NewBackdrops は背景ライブラリを作成する。先頭の背景があればそれを選択する
func NewBackdrops(sampler *Sampler, list ...Backdrop) *Backdrops {
	b := &Backdrops{list: list, current: -1, sampler: sampler}
	if len(list) > 0 {
		b.selectIndex(0)
	}
	return b
}

// OnChange は背景が切り替わったときに呼ばれる関数を設定する
func (b *Backdrops) OnChange(fn func(Backdrop)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// SwitchBackdrop は URL または名前で背景を切り替える。
// ライブラリにない背景は無視して false を返す。
func (b *Backdrops) SwitchBackdrop(ref string) bool {
	if ref == "" {
		return false
	}
	b.mu.Lock()
	idx := -1
	for i, bd := range b.list {
		if bd.URL == ref || bd.Name == ref {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return false
	}
	bd, onChange := b.selectIndex(idx)
	b.mu.Unlock()

	if onChange != nil {
		onChange(bd)
	}
	return true
}

// Current は現在の背景を返す
func (b *Backdrops) Current() (Backdrop, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current < 0 {
		return Backdrop{}, false
	}
	return b.list[b.current], true
}

func (b *Backdrops) selectIndex(i int) (Backdrop, func(Backdrop)) {
	b.current = i
	bd := b.list[i]
	if b.sampler != nil {
		b.sampler.SetBackdrop(bd.Image)
	}
	return bd, b.onChange
}
