// Package config はエンジンの調整値（速度、許容差、ステージ寸法など）を TOML から読み込む。
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/zurustar/blockstage/pkg/command"
)

// Tuning はエンジンの調整値
type Tuning struct {
	Motion  Motion  `toml:"motion"`
	Stage   Stage   `toml:"stage"`
	Trigger Trigger `toml:"trigger"`
}

// Motion は移動系プリミティブの調整値
type Motion struct {
	SlowSpeed    float64 `toml:"slow_speed"`   // px/s
	MediumSpeed  float64 `toml:"medium_speed"` // px/s
	FastSpeed    float64 `toml:"fast_speed"`   // px/s
	TurnRate     float64 `toml:"turn_rate"`    // deg/s
	HopMinMillis int     `toml:"hop_min_ms"`
	HopMsPerUnit float64 `toml:"hop_ms_per_unit"`
}

// Stage はステージの論理寸法
type Stage struct {
	Width          int     `toml:"width"`
	Height         int     `toml:"height"`
	HitboxDiameter float64 `toml:"hitbox_diameter"`
	FrameRate      int     `toml:"frame_rate"`
}

// Trigger はイベント判定の調整値
type Trigger struct {
	ColorTolerance  float64 `toml:"color_tolerance"`
	FlagResetMillis int     `toml:"flag_reset_ms"`
	RecompileMillis int     `toml:"recompile_debounce_ms"`
}

// Default はデフォルトの調整値を返す
func Default() Tuning {
	return Tuning{
		Motion: Motion{
			SlowSpeed:    75,
			MediumSpeed:  150,
			FastSpeed:    300,
			TurnRate:     360,
			HopMinMillis: 200,
			HopMsPerUnit: 8,
		},
		Stage: Stage{
			Width:          480,
			Height:         360,
			HitboxDiameter: 80,
			FrameRate:      60,
		},
		Trigger: Trigger{
			ColorTolerance:  30,
			FlagResetMillis: 100,
			RecompileMillis: 250,
		},
	}
}

// Load は TOML ファイルを読み込む。ファイルにない項目はデフォルト値のまま
func Load(path string) (Tuning, error) {
	t := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate は値の範囲を検証する
func (t Tuning) Validate() error {
	switch {
	case t.Motion.SlowSpeed <= 0 || t.Motion.MediumSpeed <= 0 || t.Motion.FastSpeed <= 0:
		return fmt.Errorf("motion speeds must be positive")
	case t.Motion.TurnRate <= 0:
		return fmt.Errorf("turn_rate must be positive")
	case t.Motion.HopMinMillis < 0 || t.Motion.HopMsPerUnit < 0:
		return fmt.Errorf("hop timing must not be negative")
	case t.Stage.Width <= 0 || t.Stage.Height <= 0:
		return fmt.Errorf("stage size must be positive: %dx%d", t.Stage.Width, t.Stage.Height)
	case t.Stage.HitboxDiameter <= 0:
		return fmt.Errorf("hitbox_diameter must be positive")
	case t.Stage.FrameRate <= 0:
		return fmt.Errorf("frame_rate must be positive")
	case t.Trigger.ColorTolerance < 0:
		return fmt.Errorf("color_tolerance must not be negative")
	case t.Trigger.FlagResetMillis < 0 || t.Trigger.RecompileMillis < 0:
		return fmt.Errorf("trigger delays must not be negative")
	}
	return nil
}

// Speed は速度指定に対応する px/s を返す
func (m Motion) Speed(s command.Speed) float64 {
	switch s {
	case command.SpeedSlow:
		return m.SlowSpeed
	case command.SpeedFast:
		return m.FastSpeed
	default:
		return m.MediumSpeed
	}
}

// HopDuration は高さ h のジャンプにかかる時間
func (m Motion) HopDuration(h float64) time.Duration {
	ms := h * m.HopMsPerUnit
	if ms < float64(m.HopMinMillis) {
		ms = float64(m.HopMinMillis)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// HalfWidth はステージの半幅
func (s Stage) HalfWidth() float64 { return float64(s.Width) / 2 }

// HalfHeight はステージの半高
func (s Stage) HalfHeight() float64 { return float64(s.Height) / 2 }

// FrameInterval は1フレームの時間
func (s Stage) FrameInterval() time.Duration {
	return time.Second / time.Duration(s.FrameRate)
}

// FlagReset はクリック・キー入力後に次の入力を受け付けるまでの時間
func (t Trigger) FlagReset() time.Duration {
	return time.Duration(t.FlagResetMillis) * time.Millisecond
}

// RecompileDebounce は色トリガー再構築の遅延時間
func (t Trigger) RecompileDebounce() time.Duration {
	return time.Duration(t.RecompileMillis) * time.Millisecond
}
