package stage

import (
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
)

// Sampler はステージの背景画像を論理サイズのラスタに展開し、
// ステージ座標の色を返す。背景が描かれるまでは色を返さない。
type Sampler struct {
	mu     sync.RWMutex
	raster *image.RGBA
	ready  bool
}

// NewSampler は width x height の空のラスタを持つ Sampler を作成する
func NewSampler(width, height int) *Sampler {
	return &Sampler{raster: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// SetBackdrop は背景画像をラスタに最近傍法で拡大縮小して描き込む。
// nil を渡すとラスタを消去する。
func (s *Sampler) SetBackdrop(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.raster.Bounds()
	draw.Draw(s.raster, b, image.Transparent, image.Point{}, draw.Src)
	s.ready = img != nil
	if img == nil {
		return
	}
	draw.NearestNeighbor.Scale(s.raster, b, img, img.Bounds(), draw.Src, nil)
}

// Fill はラスタを単色で塗る
func (s *Sampler) Fill(c RGB) {
	s.FillRect(s.raster.Bounds(), c)
}

// FillRect はラスタ座標の矩形を単色で塗る
func (s *Sampler) FillRect(r image.Rectangle, c RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	draw.Draw(s.raster, r, image.NewUniform(color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}), image.Point{}, draw.Src)
}

// ColorAt はステージ座標 (x, y) の色を返す。範囲外か背景がなければ false。
// ステージ座標は中央が原点で y が上向き
func (s *Sampler) ColorAt(x, y float64) (RGB, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return RGB{}, false
	}

	b := s.raster.Bounds()
	cx := int(math.Round(x + float64(b.Dx())/2))
	cy := int(math.Round(-y + float64(b.Dy())/2))
	if cx < 0 || cx >= b.Dx() || cy < 0 || cy >= b.Dy() {
		return RGB{}, false
	}
	c := s.raster.RGBAAt(cx, cy)
	return RGB{R: c.R, G: c.G, B: c.B}, true
}
