package sound

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/blockstage/pkg/fileutil"
)

// SampleRate は音声出力のサンプルレート
const SampleRate = 44100

var (
	// ErrNotFound は音声ファイルが見つからない場合のエラー
	ErrNotFound = errors.New("sound file not found")
	// ErrUnsupportedFormat は対応していない形式の場合のエラー
	ErrUnsupportedFormat = errors.New("unsupported sound format")
	// ErrInvalidFormat はデコードに失敗した場合のエラー
	ErrInvalidFormat = errors.New("invalid sound file")
	// ErrNoSoundFont は SoundFont なしで MIDI を再生しようとした場合のエラー
	ErrNoSoundFont = errors.New("SoundFont file is required for MIDI playback")
)

// EbitenLoader は Ebitengine/audio で音声を再生する Loader
type EbitenLoader struct {
	ctx       *audio.Context
	fsys      fileutil.FileSystem
	soundFont *meltysynth.SoundFont
	muted     bool

	mu    sync.Mutex
	cache map[string][]byte
}

// LoaderOption は EbitenLoader の設定
type LoaderOption func(*EbitenLoader)

// WithSoundFont は MIDI 再生に使う SoundFont を設定する
func WithSoundFont(sf *meltysynth.SoundFont) LoaderOption {
	return func(l *EbitenLoader) {
		l.soundFont = sf
	}
}

// WithMuted は音量0で再生するかを設定する（ヘッドレスモード用）
func WithMuted(muted bool) LoaderOption {
	return func(l *EbitenLoader) {
		l.muted = muted
	}
}

// NewEbitenLoader は EbitenLoader を作成する。ctx が nil なら作成する
func NewEbitenLoader(ctx *audio.Context, fsys fileutil.FileSystem, opts ...LoaderOption) *EbitenLoader {
	if ctx == nil {
		ctx = audio.NewContext(SampleRate)
	}
	l := &EbitenLoader{
		ctx:   ctx,
		fsys:  fsys,
		cache: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load は音声アセットをデコードして再生前の Player を返す
func (l *EbitenLoader) Load(url string) (Player, error) {
	data, err := l.read(url)
	if err != nil {
		return nil, err
	}

	var stream io.Reader
	switch ext := strings.ToLower(path.Ext(url)); ext {
	case ".wav":
		stream, err = wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	case ".mp3":
		stream, err = mp3.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	case ".ogg":
		stream, err = vorbis.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	case ".mid", ".midi":
		if l.soundFont == nil {
			return nil, ErrNoSoundFont
		}
		stream, err = NewMIDIStream(l.soundFont, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, url)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, url, err)
	}

	player, err := l.ctx.NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	if l.muted {
		player.SetVolume(0)
	}
	return player, nil
}

func (l *EbitenLoader) read(url string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if data, ok := l.cache[url]; ok {
		return data, nil
	}
	data, err := l.fsys.ReadFile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	l.cache[url] = data
	return data, nil
}
