// Package app はコマンドライン引数の解析からホストのループまでを順に組み立てる。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/zurustar/blockstage/pkg/actor"
	"github.com/zurustar/blockstage/pkg/bridge"
	"github.com/zurustar/blockstage/pkg/cli"
	"github.com/zurustar/blockstage/pkg/config"
	"github.com/zurustar/blockstage/pkg/engine"
	"github.com/zurustar/blockstage/pkg/fileutil"
	"github.com/zurustar/blockstage/pkg/logger"
	"github.com/zurustar/blockstage/pkg/project"
	"github.com/zurustar/blockstage/pkg/sound"
	"github.com/zurustar/blockstage/pkg/stage"
	"github.com/zurustar/blockstage/pkg/window"
)

// DemoDir は組み込みのデモプロジェクトのディレクトリ
const DemoDir = "demo"

// DemoProject は組み込みのデモプロジェクトのファイル名
const DemoProject = "project.yaml"

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	embedFS fs.FS
	out     io.Writer

	config   *cli.Config
	log      *slog.Logger
	tuning   config.Tuning
	project  *project.Project
	assets   fileutil.FileSystem
	embedded bool
	store    *project.Store

	registry  *actor.Registry
	sampler   *stage.Sampler
	backdrops *stage.Backdrops
	costumes  map[string]*stage.Costume
}

// New Applicationを作成
func New(embedFS fs.FS) *Application {
	return &Application{
		embedFS: embedFS,
		out:     os.Stdout,
	}
}

// Run はコマンドライン引数を解釈してアプリケーションを実行する
func (app *Application) Run(args []string) error {
	root := cli.NewRootCommand(cli.Handlers{
		Run:   app.run,
		Check: app.check,
	})
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	return root.Execute()
}

func (app *Application) run(cfg *cli.Config) error {
	app.config = cfg

	// 1. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log.Info("Application started")

	// 2. 調整値の読み込み
	if err := app.loadTuning(); err != nil {
		return fmt.Errorf("failed to load tuning: %w", err)
	}

	// 3. プロジェクトの読み込み
	if err := app.loadProject(); err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	app.log.Info("Project loaded", "title", app.project.Title, "actors", len(app.project.Actors), "embedded", app.embedded)

	// 4. 保存済みスクリプト文書の反映
	if err := app.openStore(); err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if app.store != nil {
		defer app.store.Close()
	}

	// 5. 画像の読み込み
	if err := app.loadAssets(); err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}

	// 6. エンジンとホストの実行
	if err := app.runEngine(); err != nil {
		return fmt.Errorf("failed to run engine: %w", err)
	}

	app.log.Info("Application terminated normally")
	return nil
}

// check はスクリプトを検査して問題を出力する
func (app *Application) check(cfg *cli.Config) error {
	app.config = cfg
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := app.loadProject(); err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	problems := project.Check(app.project.Actors)
	for _, p := range problems {
		fmt.Fprintln(app.out, p.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	fmt.Fprintf(app.out, "%s: %d actor(s) OK\n", cfg.ProjectPath, len(app.project.Actors))
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

func (app *Application) loadTuning() error {
	if app.config.TuningPath == "" {
		app.tuning = config.Default()
		return nil
	}
	t, err := config.Load(app.config.TuningPath)
	if err != nil {
		return err
	}
	app.tuning = t
	app.log.Info("Tuning loaded", "path", app.config.TuningPath)
	return nil
}

// loadProject はプロジェクトを読み込む。指定がなければ組み込みのデモを使う
func (app *Application) loadProject() error {
	if app.config.ProjectPath != "" {
		p, err := project.Load(app.config.ProjectPath)
		if err != nil {
			return err
		}
		app.project = p
		app.assets = fileutil.NewRealFS(p.Dir)
		app.embedded = false
		return nil
	}

	if app.embedFS == nil {
		return errors.New("no project specified")
	}
	data, err := fs.ReadFile(app.embedFS, DemoDir+"/"+DemoProject)
	if err != nil {
		return fmt.Errorf("no project specified and no embedded demo: %w", err)
	}
	p, err := project.Parse(data)
	if err != nil {
		return err
	}
	app.project = p
	app.assets = fileutil.NewEmbedFS(app.embedFS, DemoDir)
	app.embedded = true
	return nil
}

func (app *Application) openStore() error {
	if app.config.StorePath == "" {
		return nil
	}
	s, err := project.OpenStore(app.config.StorePath)
	if err != nil {
		return err
	}
	n, err := s.Apply(app.project.Actors)
	if err != nil {
		s.Close()
		return err
	}
	app.store = s
	app.log.Info("Stored scripts applied", "path", app.config.StorePath, "count", n)
	return nil
}

// runEngine はエンジンを組み立ててホストのループを回す
func (app *Application) runEngine() error {
	reg, err := app.project.Registry()
	if err != nil {
		return err
	}
	app.registry = reg

	session := newEditSession(reg, app.log)
	opts := []engine.Option{
		engine.WithLogger(app.log),
		engine.WithTuning(app.tuning),
		engine.WithSampler(app.sampler),
		engine.WithBackdrops(app.backdrops),
		engine.WithSounds(app.newSoundLoader()),
		engine.WithEditor(session),
	}
	if app.store != nil {
		opts = append(opts, engine.WithDocumentStore(app.store))
		session.store = app.store
	}

	var game *window.Game
	if !app.config.Headless {
		game = window.NewGame(reg, app.backdrops, app.tuning.Stage,
			window.WithCostumes(app.costumes),
			window.WithTimeout(app.config.Timeout),
			window.WithLogger(app.log),
		)
		opts = append(opts, engine.WithRenderer(game), engine.WithControls(game))
	}

	var (
		br        *bridge.Bridge
		transport *bridge.MQTT
	)
	if app.config.MQTTURL != "" {
		origin := "blockstage-" + uuid.New().String()
		transport, err = bridge.Dial(app.config.MQTTURL, origin)
		if err != nil {
			return err
		}
		defer transport.Close()
		br = bridge.New(transport, bridge.WithOrigin(origin), bridge.WithLogger(app.log), bridge.WithEditor(session))
		opts = append(opts, engine.WithBroadcastHook(br.Hook))
		app.log.Info("Broadcast bridge connected", "url", app.config.MQTTURL)
	}

	e := engine.New(reg, opts...)
	session.attach(e)
	defer e.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if br != nil {
		go func() {
			if err := br.Run(ctx, e); err != nil {
				app.log.Error("Broadcast bridge stopped", "error", err)
			}
		}()
	}

	if app.config.Autostart {
		e.Start()
	}

	if app.config.Headless {
		err := window.RunHeadless(ctx, e, app.tuning.Stage.FrameInterval(), app.config.Timeout)
		if errors.Is(err, context.Canceled) {
			app.log.Info("Interrupted")
			return nil
		}
		return err
	}

	game.SetEngine(e)
	title := "blockstage"
	if app.project.Title != "" {
		title = app.project.Title + " - blockstage"
	}
	return window.Run(game, title)
}

// newSoundLoader は音声の読み込み元を作成する。MIDI 用の SoundFont があれば使う
func (app *Application) newSoundLoader() *sound.EbitenLoader {
	opts := []sound.LoaderOption{sound.WithMuted(app.config.Headless)}

	projectDir := ""
	if !app.embedded {
		projectDir = app.project.Dir
	}
	if loc := findSoundFont(app.embedFS, projectDir); loc != nil {
		sf, err := loc.load()
		if err != nil {
			app.log.Warn("Failed to load SoundFont", "path", loc.Path, "error", err)
		} else {
			app.log.Info("SoundFont loaded", "path", loc.Path, "embedded", loc.IsEmbedded)
			opts = append(opts, sound.WithSoundFont(sf))
		}
	}
	return sound.NewEbitenLoader(nil, app.assets, opts...)
}
