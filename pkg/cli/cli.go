// Package cli はコマンドライン引数と環境変数から実行設定を組み立てる。
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	ProjectPath string        // プロジェクトファイル（空なら組み込みのデモ）
	Timeout     time.Duration // タイムアウト時間（0は無制限）
	LogLevel    string        // ログレベル（debug, info, warn, error）
	Headless    bool          // ヘッドレスモード
	TuningPath  string        // 調整値ファイル（TOML）
	StorePath   string        // スクリプト文書の保存先（SQLite）
	MQTTURL     string        // メッセージ中継先のブローカー
	Autostart   bool          // 起動直後に開始する
}

// Handlers はサブコマンドの実処理
type Handlers struct {
	Run   func(*Config) error
	Check func(*Config) error
}

// NewRootCommand はコマンドツリーを作成する
func NewRootCommand(h Handlers) *cobra.Command {
	cfg := &Config{}
	var timeoutSec int

	root := &cobra.Command{
		Use:   "blockstage [project.yaml]",
		Short: "Block script stage runner",
		Long: `blockstage はプロジェクトファイルに書かれたアクターとブロックスクリプトを実行する。

Enter で開始、Escape で停止。アクターをクリックするとクリック時のスクリプトが動く。

Environment Variables:
  HEADLESS=1          ヘッドレスモードを有効化
  TIMEOUT=<seconds>   タイムアウト時間（秒）
  LOG_LEVEL=<level>   ログレベル
  MQTT_URL=<url>      メッセージ中継先のブローカー`,
		Example: `  blockstage project.yaml
  blockstage --headless --autostart --timeout 10 project.yaml
  blockstage --mqtt tcp://localhost:1883 project.yaml
  blockstage check project.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.finish(cmd.Flags(), timeoutSec, args); err != nil {
				return err
			}
			if h.Run == nil {
				return nil
			}
			return h.Run(cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&cfg.LogLevel, "log-level", "l", "info", "ログレベル: debug, info, warn, error")
	pf.StringVar(&cfg.TuningPath, "tuning", "", "調整値ファイル（TOML）")

	f := root.Flags()
	f.IntVarP(&timeoutSec, "timeout", "t", 0, "指定秒数後に終了（0は無制限）")
	f.BoolVar(&cfg.Headless, "headless", false, "ヘッドレスモード（GUIなし）")
	f.StringVar(&cfg.StorePath, "store", "", "スクリプト文書の保存先（SQLite）")
	f.StringVar(&cfg.MQTTURL, "mqtt", "", "メッセージを中継する MQTT ブローカーの URL")
	f.BoolVar(&cfg.Autostart, "autostart", false, "起動直後にスクリプトを開始する")

	check := &cobra.Command{
		Use:   "check <project.yaml>",
		Short: "Load and compile all scripts without running them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.finish(cmd.Flags(), 0, args); err != nil {
				return err
			}
			if h.Check == nil {
				return nil
			}
			return h.Check(cfg)
		},
	}
	root.AddCommand(check)

	return root
}

// ParseArgs はコマンドを実行せずに設定だけを解析する。
// ヘルプが要求された場合は pflag.ErrHelp を返す
func ParseArgs(args []string) (*Config, error) {
	var parsed *Config
	root := NewRootCommand(Handlers{
		Run:   func(c *Config) error { parsed = c; return nil },
		Check: func(c *Config) error { parsed = c; return nil },
	})
	if args == nil {
		// nil だと cobra は os.Args を読む
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, pflag.ErrHelp
	}
	return parsed, nil
}

// finish は環境変数を反映して設定を検証する。
// 環境変数はフラグが明示されていない項目にだけ効く。
func (c *Config) finish(flags *pflag.FlagSet, timeoutSec int, args []string) error {
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if !changed("headless") {
		if v := os.Getenv("HEADLESS"); v != "" {
			c.Headless = v == "1" || strings.EqualFold(v, "true")
		}
	}
	if !changed("timeout") {
		if v := os.Getenv("TIMEOUT"); v != "" {
			if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
				timeoutSec = sec
			}
		}
	}
	if !changed("log-level") {
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			c.LogLevel = strings.ToLower(v)
		}
	}
	if !changed("mqtt") {
		if v := os.Getenv("MQTT_URL"); v != "" {
			c.MQTTURL = v
		}
	}

	if timeoutSec < 0 {
		return fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	c.Timeout = time.Duration(timeoutSec) * time.Second

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if len(args) > 0 {
		c.ProjectPath = args[0]
	}
	return nil
}
