package sound

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/blockstage/pkg/fileutil"
)

// renderer は左右チャンネルの float32 サンプルを生成する
type renderer interface {
	Render(left, right []float32)
}

// MIDIStream はシーケンサの出力を 16bit ステレオ PCM として読み出す。
// 曲の長さ分を読み終えると io.EOF を返す
type MIDIStream struct {
	mu        sync.Mutex
	seq       renderer
	remaining int64 // 残りサンプル数
}

// NewMIDIStream は SMF データを SoundFont で演奏するストリームを作成する
func NewMIDIStream(sf *meltysynth.SoundFont, data []byte) (*MIDIStream, error) {
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI file: %w", err)
	}
	seq := meltysynth.NewMidiFileSequencer(synth)
	seq.Play(midi, false)

	return newMIDIStream(seq, midi.GetLength()), nil
}

func newMIDIStream(seq renderer, length time.Duration) *MIDIStream {
	return &MIDIStream{
		seq:       seq,
		remaining: int64(length.Seconds() * SampleRate),
	}
}

// Read は io.Reader を実装する
func (s *MIDIStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remaining <= 0 {
		return 0, io.EOF
	}

	// 16bit ステレオ = 1サンプル4バイト
	samples := int64(len(p) / 4)
	if samples == 0 {
		return 0, nil
	}
	if samples > s.remaining {
		samples = s.remaining
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.seq.Render(left, right)
	s.remaining -= samples

	for i := range samples {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return int(samples * 4), nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LoadSoundFont はアセットから SoundFont を読み込む
func LoadSoundFont(fsys fileutil.FileSystem, name string) (*meltysynth.SoundFont, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return sf, nil
}
