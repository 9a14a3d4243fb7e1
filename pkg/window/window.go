// Package window はエンジンを動かすホスト（デスクトップウィンドウとヘッドレス）を提供する。
package window

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/colorm"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/config"
	"github.com/zurustar/blockstage/pkg/logger"
	"github.com/zurustar/blockstage/pkg/stage"
)

var (
	// 背景がないときの塗りつぶし色
	backgroundColor = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	// 画像のないアクターの代わりに描く円
	placeholderColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	bubbleColor      = color.RGBA{0xFF, 0xFF, 0xFF, 0xF0}
	bubbleTextColor  = color.Black
	statusColor      = color.RGBA{0x00, 0xA0, 0x40, 0xFF}
	defaultFace      = text.NewGoXFace(basicfont.Face7x13)
)

// Engine はホストから操作するエンジンの機能
type Engine interface {
	Tick(now time.Time)
	View(fn func())
	Start() <-chan struct{}
	StopAll()
	ClickActor(actorID string) <-chan struct{}
	PressKey(key string) <-chan struct{}
}

// Game は Ebitengine のゲームインターフェースを実装する
type Game struct {
	actors    *actor.Registry
	backdrops *stage.Backdrops
	stage     config.Stage
	costumes  map[string]*stage.Costume
	timeout   time.Duration
	startTime time.Time
	log       *slog.Logger

	engine Engine

	running atomic.Bool
	stale   atomic.Bool

	// 描画スレッドだけが触る
	keys       []ebiten.Key
	sprites    []Sprite
	images     map[string][]*ebiten.Image
	backdropID string
	backdrop   *ebiten.Image

	mu sync.RWMutex
}

// Option は Game の設定
type Option func(*Game)

// WithCostumes はコスチューム画像を設定する
func WithCostumes(c map[string]*stage.Costume) Option {
	return func(g *Game) { g.costumes = c }
}

// WithTimeout は指定時間経過後にウィンドウを閉じる
func WithTimeout(d time.Duration) Option {
	return func(g *Game) { g.timeout = d }
}

// WithLogger はロガーを設定する
func WithLogger(l *slog.Logger) Option {
	return func(g *Game) { g.log = l }
}

// NewGame は Game を作成する
func NewGame(actors *actor.Registry, backdrops *stage.Backdrops, st config.Stage, opts ...Option) *Game {
	g := &Game{
		actors:    actors,
		backdrops: backdrops,
		stage:     st,
		startTime: time.Now(),
		images:    make(map[string][]*ebiten.Image),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.GetLogger()
	}
	g.stale.Store(true)
	return g
}

// SetEngine はエンジンを設定する
func (g *Game) SetEngine(e Engine) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.engine = e
}

func (g *Game) getEngine() Engine {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine
}

// Refresh はアクターの見た目が変わったことを受け取る。
// エンジンのフレーム処理から呼ばれる
func (g *Game) Refresh(*actor.Actor) {
	g.stale.Store(true)
}

// SetScriptsRunning は実行中表示を切り替える
func (g *Game) SetScriptsRunning(running bool) {
	g.running.Store(running)
}

// ScriptsRunning は実行中表示の状態を返す
func (g *Game) ScriptsRunning() bool {
	return g.running.Load()
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	if g.timeout > 0 && time.Since(g.startTime) >= g.timeout {
		return ebiten.Termination
	}
	e := g.getEngine()
	if e == nil {
		return nil
	}

	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		g.handleKey(e, k)
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.handleClick(e, ebiten.CursorPosition())
	}

	e.Tick(time.Now())
	return nil
}

// handleKey は Enter で開始、Escape で停止、それ以外はキー押下として渡す
func (g *Game) handleKey(e Engine, k ebiten.Key) {
	switch k {
	case ebiten.KeyEnter, ebiten.KeyNumpadEnter:
		e.Start()
	case ebiten.KeyEscape:
		e.StopAll()
	default:
		if name, ok := KeyName(k); ok {
			e.PressKey(name)
		}
	}
}

// handleClick はクリック位置の最前面のアクターにクリックを渡す
func (g *Game) handleClick(e Engine, sx, sy int) {
	x, y := ScreenToStage(sx, sy, g.stage)
	var (
		id  string
		hit bool
	)
	e.View(func() {
		id, hit = HitTest(g.actors.All(), x, y, g.stage.HitboxDiameter)
	})
	if hit {
		g.log.Debug("Actor clicked", "actor", id, "x", x, "y", y)
		e.ClickActor(id)
	}
}

// collect は見た目が変わっていればアクターの描画情報を取り直す
func (g *Game) collect() {
	if !g.stale.Swap(false) {
		return
	}
	e := g.getEngine()
	if e == nil {
		g.sprites = Collect(g.actors.All(), g.stage)
		return
	}
	e.View(func() {
		g.sprites = Collect(g.actors.All(), g.stage)
	})
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	g.collect()

	screen.Fill(backgroundColor)
	g.drawBackdrop(screen)
	for _, s := range g.sprites {
		g.drawSprite(screen, s)
	}
	for _, s := range g.sprites {
		if s.Speech != "" {
			drawBubble(screen, s)
		}
	}
	if g.running.Load() {
		op := &text.DrawOptions{}
		op.GeoM.Translate(4, 2)
		op.ColorScale.ScaleWithColor(statusColor)
		text.Draw(screen, "RUNNING", defaultFace, op)
	}
}

func (g *Game) drawBackdrop(screen *ebiten.Image) {
	if g.backdrops == nil {
		return
	}
	b, ok := g.backdrops.Current()
	if !ok || b.Image == nil {
		return
	}
	if g.backdropID != b.Name+"\x00"+b.URL {
		g.backdropID = b.Name + "\x00" + b.URL
		g.backdrop = ebiten.NewImageFromImage(b.Image)
	}

	bw, bh := g.backdrop.Bounds().Dx(), g.backdrop.Bounds().Dy()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.stage.Width)/float64(bw), float64(g.stage.Height)/float64(bh))
	screen.DrawImage(g.backdrop, op)
}

func (g *Game) drawSprite(screen *ebiten.Image, s Sprite) {
	img := g.frameImage(s.Costume, s.Frame)
	if img == nil {
		vector.DrawFilledCircle(screen, float32(s.X), float32(s.Y), float32(s.Radius), placeholderColor, true)
		return
	}

	w, h := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	op := &colorm.DrawImageOptions{}
	op.GeoM.Translate(-w/2, -h/2)
	if s.FlipX {
		op.GeoM.Scale(-1, 1)
	}
	op.GeoM.Scale(s.Scale, s.Scale)
	op.GeoM.Rotate(s.Angle)
	op.GeoM.Translate(s.X, s.Y)
	op.Filter = ebiten.FilterLinear

	var cm colorm.ColorM
	if s.Hue != 0 {
		cm.RotateHue(s.Hue * math.Pi / 180)
	}
	colorm.DrawImage(screen, img, cm, op)
}

// frameImage はコスチュームのフレームを ebiten.Image にして返す
func (g *Game) frameImage(name string, frame int) *ebiten.Image {
	if name == "" {
		return nil
	}
	imgs, ok := g.images[name]
	if !ok {
		if c, found := g.costumes[name]; found {
			for _, f := range c.Frames {
				imgs = append(imgs, ebiten.NewImageFromImage(f))
			}
		}
		g.images[name] = imgs
	}
	if len(imgs) == 0 {
		return nil
	}
	return imgs[frame%len(imgs)]
}

func drawBubble(screen *ebiten.Image, s Sprite) {
	const pad = 4
	w, h := text.Measure(s.Speech, defaultFace, defaultFace.Metrics().HAscent+defaultFace.Metrics().HDescent)
	x := s.X + s.Radius/2
	y := s.Y - s.Radius - h - 2*pad
	if y < 0 {
		y = 0
	}
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w+2*pad), float32(h+2*pad), bubbleColor, false)
	vector.StrokeRect(screen, float32(x), float32(y), float32(w+2*pad), float32(h+2*pad), 1, bubbleTextColor, false)

	op := &text.DrawOptions{}
	op.GeoM.Translate(x+pad, y+pad)
	op.ColorScale.ScaleWithColor(bubbleTextColor)
	text.Draw(screen, s.Speech, defaultFace, op)
}

// Layout 画面サイズを返す。ステージの論理寸法で固定する
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.stage.Width, g.stage.Height
}

// Run はウィンドウを開いてゲームループを実行する。ウィンドウが閉じられるまで戻らない
func Run(g *Game, title string) error {
	ebiten.SetWindowSize(g.stage.Width*2, g.stage.Height*2)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if g.stage.FrameRate > 0 {
		ebiten.SetTPS(g.stage.FrameRate)
	}

	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}
