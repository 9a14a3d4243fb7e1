// Package project はプロジェクト記述（YAML）の読み込みと
// スクリプト文書の永続化を扱う。
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/document"
	"github.com/zurustar/blockstage/pkg/stage"
)

var (
	// ErrNoActors はアクターが1つも定義されていない場合のエラー
	ErrNoActors = errors.New("project has no actors")
	// ErrInvalid はプロジェクト記述の内容が不正な場合のエラー
	ErrInvalid = errors.New("invalid project")
)

// File はプロジェクトファイルの構造
type File struct {
	Title  string      `yaml:"title"`
	Stage  StageSpec   `yaml:"stage"`
	Actors []ActorSpec `yaml:"actors"`
}

// StageSpec はステージの設定
type StageSpec struct {
	Backdrops []BackdropSpec `yaml:"backdrops"`
}

// BackdropSpec は背景1枚分の設定
type BackdropSpec struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ActorSpec はアクター1体分の設定。省略された値は actor.New の既定値になる
type ActorSpec struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	X             float64          `yaml:"x"`
	Y             float64          `yaml:"y"`
	Heading       *float64         `yaml:"heading"`
	Size          *float64         `yaml:"size"`
	Visible       *bool            `yaml:"visible"`
	Rotation      string           `yaml:"rotation"`
	AnimationRate *float64         `yaml:"animation_rate"`
	Tint          float64          `yaml:"tint"`
	Costume       string           `yaml:"costume"`
	Sounds        []SoundSpec      `yaml:"sounds"`
	Script        []document.Block `yaml:"script"`
}

// SoundSpec は音声アセットの設定
type SoundSpec struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Project は読み込み済みのプロジェクト
type Project struct {
	Title     string
	Dir       string
	Backdrops []stage.Backdrop
	Actors    []*actor.Actor
}

// Load はプロジェクトファイルを読み込む。
// 資産ファイルの基準ディレクトリはプロジェクトファイルのあるディレクトリになる。
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", path, err)
	}
	p.Dir = filepath.Dir(path)
	return p, nil
}

// Parse はプロジェクト記述を解釈する。
// UTF-8 として不正なバイト列は Shift-JIS とみなして変換する。
func Parse(data []byte) (*Project, error) {
	text, err := toUTF8(data)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(text, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return f.Build()
}

// Build はファイル構造からアクターと背景を作成する
func (f File) Build() (*Project, error) {
	if len(f.Actors) == 0 {
		return nil, ErrNoActors
	}

	p := &Project{Title: f.Title}
	for _, b := range f.Stage.Backdrops {
		if b.Name == "" && b.URL == "" {
			return nil, fmt.Errorf("%w: backdrop without name or url", ErrInvalid)
		}
		p.Backdrops = append(p.Backdrops, stage.Backdrop{Name: b.Name, URL: b.URL})
	}

	seen := make(map[string]bool, len(f.Actors))
	for i, spec := range f.Actors {
		if spec.ID == "" {
			return nil, fmt.Errorf("%w: actor #%d has no id", ErrInvalid, i+1)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("%w: duplicate actor id %q", ErrInvalid, spec.ID)
		}
		seen[spec.ID] = true

		a, err := spec.build()
		if err != nil {
			return nil, err
		}
		p.Actors = append(p.Actors, a)
	}
	return p, nil
}

func (s ActorSpec) build() (*actor.Actor, error) {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	a := actor.New(s.ID, name)
	a.Pose.X = s.X
	a.Pose.Y = s.Y
	if s.Heading != nil {
		a.Pose.Heading = *s.Heading
	}
	if s.Size != nil {
		a.Pose.Size = *s.Size
	}
	if s.Visible != nil {
		a.Pose.Visible = *s.Visible
	}
	a.Rotation = actor.ParseRotationMode(s.Rotation)
	if s.AnimationRate != nil && *s.AnimationRate > 0 {
		a.AnimationRate = *s.AnimationRate
	}
	a.Hue = s.Tint
	a.Costume = s.Costume
	for _, snd := range s.Sounds {
		a.Sounds = append(a.Sounds, actor.Sound{Name: snd.Name, URL: snd.URL})
	}

	if len(s.Script) > 0 {
		blob, err := document.Encode(s.Script)
		if err != nil {
			return nil, fmt.Errorf("failed to encode script of %s: %w", s.ID, err)
		}
		a.Script = blob
	}
	return a, nil
}

// Registry はプロジェクトのアクターからレジストリを作成する
func (p *Project) Registry() (*actor.Registry, error) {
	return actor.NewRegistry(p.Actors...)
}

func toUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	r := transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder())
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode Shift-JIS: %v", ErrInvalid, err)
	}
	return out, nil
}
