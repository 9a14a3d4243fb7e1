// Package fileutil provides case-insensitive access to project assets stored
// either in a directory on disk or in an embedded file system.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no entry matches the requested name.
var ErrNotFound = errors.New("file not found")

// FileSystem はプロジェクトのアセットを読み出す
type FileSystem interface {
	// Open はファイルを開く（大文字小文字を無視）
	Open(name string) (fs.File, error)
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// BasePath はベースパスを返す
	BasePath() string
}

// RealFS はディスク上のディレクトリをアセット置き場として扱う
type RealFS struct {
	basePath string
}

// NewRealFS は basePath 以下を参照する RealFS を作成する
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) Open(name string) (fs.File, error) {
	p, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	p, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) locate(name string) (string, error) {
	p := cleanName(name)
	if !filepath.IsAbs(p) && r.basePath != "" {
		p = filepath.Join(r.basePath, p)
	}
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p))
}

// EmbedFS は fs.FS（embed.FS など）をアセット置き場として扱う
type EmbedFS struct {
	fsys     fs.FS
	basePath string
}

// NewEmbedFS は fsys の basePath 以下を参照する EmbedFS を作成する
func NewEmbedFS(fsys fs.FS, basePath string) *EmbedFS {
	return &EmbedFS{fsys: fsys, basePath: basePath}
}

func (e *EmbedFS) Open(name string) (fs.File, error) {
	p, err := e.locate(name)
	if err != nil {
		return nil, err
	}
	return e.fsys.Open(p)
}

func (e *EmbedFS) ReadFile(name string) ([]byte, error) {
	p, err := e.locate(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(e.fsys, p)
}

func (e *EmbedFS) BasePath() string {
	return e.basePath
}

func (e *EmbedFS) locate(name string) (string, error) {
	// fs.FS のパスは常に "/" 区切り
	p := strings.ReplaceAll(cleanName(name), "\\", "/")
	if e.basePath != "" {
		p = path.Join(e.basePath, p)
	}
	if _, err := fs.Stat(e.fsys, p); err == nil {
		return p, nil
	}
	return FindFileCaseInsensitiveFS(e.fsys, path.Dir(p), path.Base(p))
}

// cleanName は先頭の "/" や "\"、"file://" を取り除く
func cleanName(name string) string {
	name = strings.TrimPrefix(name, "file://")
	return strings.TrimLeft(name, "/\\")
}

// FindFileCaseInsensitive searches dir for a file whose name matches filename
// ignoring case and returns its full path.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), filename) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive for an fs.FS.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), filename) {
			return path.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}
