package stage

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"time"

	"github.com/zurustar/blockstage/pkg/fileutil"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Costume はアクターの見た目。アニメーション画像なら複数フレームを持つ
type Costume struct {
	Frames []image.Image
	Delays []time.Duration
}

// LoadImage はアセットから静止画像を読み込む（png, jpeg, gif, bmp）
func LoadImage(fsys fileutil.FileSystem, name string) (image.Image, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", name, err)
	}
	return img, nil
}

// LoadCostume はアセットからコスチュームを読み込む。
// GIF は全フレームを展開し、それ以外は1フレームとして扱う
func LoadCostume(fsys fileutil.FileSystem, name string) (*Costume, error) {
	if !strings.EqualFold(path.Ext(name), ".gif") {
		img, err := LoadImage(fsys, name)
		if err != nil {
			return nil, err
		}
		return &Costume{Frames: []image.Image{img}}, nil
	}

	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", name, err)
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode gif %s: %w", name, err)
	}
	return composeGIF(g), nil
}

// composeGIF は差分フレームを重ね合わせて完全なフレーム列にする
func composeGIF(g *gif.GIF) *Costume {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)

	c := &Costume{}
	for i, frame := range g.Image {
		drawOver(canvas, frame)
		snapshot := image.NewRGBA(bounds)
		copy(snapshot.Pix, canvas.Pix)
		c.Frames = append(c.Frames, snapshot)

		// GIF の遅延は 1/100 秒単位
		var delay time.Duration
		if i < len(g.Delay) {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		c.Delays = append(c.Delays, delay)

		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalBackground {
			clearRect(canvas, frame.Bounds())
		}
	}
	return c
}

func drawOver(dst *image.RGBA, src image.Image) {
	draw.Draw(dst, src.Bounds(), src, src.Bounds().Min, draw.Over)
}

func clearRect(dst *image.RGBA, r image.Rectangle) {
	draw.Draw(dst, r, image.Transparent, image.Point{}, draw.Src)
}
