package app

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/zurustar/blockstage/pkg/cli"
	"github.com/zurustar/blockstage/pkg/config"
)

const goodProject = `
title: test
stage:
  backdrops:
    - name: red
      url: red.png
    - name: missing
      url: missing.png
actors:
  - id: cat
    costume: red.png
    script:
      - id: h1
        type: event_when_go_clicked
        next: m1
      - id: m1
        type: motion_movesteps
        fields: {STEPS: "10", SPEED: medium}
  - id: dog
    costume: nothing.png
`

const badProject = `
actors:
  - id: cat
    script:
      - id: h1
        type: event_when_go_clicked
        next: x1
      - id: x1
        type: no_such_block
`

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeProject(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "red.png"), color.RGBA{R: 255, A: 255})
	return path
}

func newTestApp(cfg *cli.Config, embedFS fstest.MapFS) (*Application, *bytes.Buffer) {
	var out bytes.Buffer
	app := New(embedFS)
	app.out = &out
	app.config = cfg
	app.log = slog.New(slog.DiscardHandler)
	app.tuning = config.Default()
	return app, &out
}

func TestCheck(t *testing.T) {
	t.Run("問題なし", func(t *testing.T) {
		path := writeProject(t, goodProject)
		app, out := newTestApp(nil, nil)
		if err := app.Run([]string{"check", path}); err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if !strings.Contains(out.String(), "2 actor(s) OK") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("未知のブロック", func(t *testing.T) {
		path := writeProject(t, badProject)
		app, out := newTestApp(nil, nil)
		err := app.Run([]string{"check", path})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(out.String(), "x1") {
			t.Errorf("problem output should name the block: %q", out.String())
		}
	})

	t.Run("ファイルがない", func(t *testing.T) {
		app, _ := newTestApp(nil, nil)
		if err := app.Run([]string{"check", filepath.Join(t.TempDir(), "none.yaml")}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadProject(t *testing.T) {
	t.Run("ファイルから", func(t *testing.T) {
		path := writeProject(t, goodProject)
		app, _ := newTestApp(&cli.Config{ProjectPath: path}, nil)
		if err := app.loadProject(); err != nil {
			t.Fatalf("loadProject() failed: %v", err)
		}
		if app.embedded || app.project.Title != "test" {
			t.Errorf("embedded = %v, title = %q", app.embedded, app.project.Title)
		}
		if app.assets.BasePath() != filepath.Dir(path) {
			t.Errorf("assets base = %q", app.assets.BasePath())
		}
	})

	t.Run("組み込みのデモ", func(t *testing.T) {
		embedFS := fstest.MapFS{DemoDir + "/" + DemoProject: {Data: []byte(goodProject)}}
		app, _ := newTestApp(&cli.Config{}, embedFS)
		if err := app.loadProject(); err != nil {
			t.Fatalf("loadProject() failed: %v", err)
		}
		if !app.embedded || len(app.project.Actors) != 2 {
			t.Errorf("embedded = %v, actors = %d", app.embedded, len(app.project.Actors))
		}
	})

	t.Run("指定もデモもない", func(t *testing.T) {
		app, _ := newTestApp(&cli.Config{}, fstest.MapFS{})
		if err := app.loadProject(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadAssets(t *testing.T) {
	path := writeProject(t, goodProject)
	app, _ := newTestApp(&cli.Config{ProjectPath: path}, nil)
	if err := app.loadProject(); err != nil {
		t.Fatal(err)
	}
	if err := app.loadAssets(); err != nil {
		t.Fatalf("loadAssets() failed: %v", err)
	}

	cur, ok := app.backdrops.Current()
	if !ok || cur.Name != "red" || cur.Image == nil {
		t.Fatalf("current backdrop = %+v, %v", cur, ok)
	}
	if rgb, ok := app.sampler.ColorAt(0, 0); !ok || rgb.R != 255 || rgb.G != 0 {
		t.Errorf("ColorAt(0, 0) = %+v, %v", rgb, ok)
	}

	// 読めない背景も名前で切り替えられる
	if !app.backdrops.SwitchBackdrop("missing") {
		t.Error("backdrop without image should still be selectable")
	}

	if c, ok := app.costumes["red.png"]; !ok || len(c.Frames) != 1 {
		t.Errorf("costume red.png = %+v, %v", c, ok)
	}
	if _, ok := app.costumes["nothing.png"]; ok {
		t.Error("missing costume should be skipped")
	}
}

func TestOpenStore(t *testing.T) {
	path := writeProject(t, goodProject)
	dbPath := filepath.Join(t.TempDir(), "docs.db")
	app, _ := newTestApp(&cli.Config{ProjectPath: path, StorePath: dbPath}, nil)
	if err := app.loadProject(); err != nil {
		t.Fatal(err)
	}
	if err := app.openStore(); err != nil {
		t.Fatalf("openStore() failed: %v", err)
	}
	defer app.store.Close()
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("store file not created: %v", err)
	}
}
