package app

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/blockstage/pkg/fileutil"
	"github.com/zurustar/blockstage/pkg/sound"
)

// SoundFontLocation は見つかった SoundFont の場所
type SoundFontLocation struct {
	// Path is the path to the SoundFont file
	Path string
	// FileSystem is the FileSystem to use for loading (nil for external files)
	FileSystem fileutil.FileSystem
	// IsEmbedded indicates whether the SoundFont is embedded
	IsEmbedded bool
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont は次の順で SoundFont を探す。
//  1. 組み込みの soundfonts ディレクトリ
//  2. カレントディレクトリ
//  3. プロジェクトのディレクトリ
//
// 見つからなければ nil
func findSoundFont(embedFS fs.FS, projectDir string) *SoundFontLocation {
	if embedFS != nil {
		if data, err := fs.ReadFile(embedFS, "soundfonts/"+DefaultSoundFontName); err == nil && len(data) > 0 {
			return &SoundFontLocation{
				Path:       DefaultSoundFontName, // FileSystemのベースパスが"soundfonts"なので、ファイル名だけ
				FileSystem: fileutil.NewEmbedFS(embedFS, "soundfonts"),
				IsEmbedded: true,
			}
		}
	}

	if _, err := os.Stat(DefaultSoundFontName); err == nil {
		return &SoundFontLocation{Path: DefaultSoundFontName}
	}

	if projectDir != "" {
		p := filepath.Join(projectDir, DefaultSoundFontName)
		if _, err := os.Stat(p); err == nil {
			return &SoundFontLocation{Path: p}
		}
	}
	return nil
}

// load は SoundFont を読み込む
func (l *SoundFontLocation) load() (*meltysynth.SoundFont, error) {
	fsys := l.FileSystem
	if fsys == nil {
		fsys = fileutil.NewRealFS("")
	}
	return sound.LoadSoundFont(fsys, l.Path)
}
