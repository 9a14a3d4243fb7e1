package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// clearEnv は環境変数の影響を受けないようにする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HEADLESS", "TIMEOUT", "LOG_LEVEL", "MQTT_URL"} {
		t.Setenv(k, "")
	}
}

func TestParseArgs_ValidArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name:     "デフォルト設定",
			args:     []string{},
			expected: Config{LogLevel: "info"},
		},
		{
			name:     "プロジェクト指定",
			args:     []string{"/path/to/project.yaml"},
			expected: Config{ProjectPath: "/path/to/project.yaml", LogLevel: "info"},
		},
		{
			name:     "タイムアウト指定（短縮形）",
			args:     []string{"-t", "5"},
			expected: Config{Timeout: 5 * time.Second, LogLevel: "info"},
		},
		{
			name:     "ログレベル指定（短縮形）",
			args:     []string{"-l", "error"},
			expected: Config{LogLevel: "error"},
		},
		{
			name: "位置引数の後にフラグ",
			args: []string{"demo.yaml", "--timeout", "10", "--headless", "--autostart"},
			expected: Config{
				ProjectPath: "demo.yaml",
				Timeout:     10 * time.Second,
				LogLevel:    "info",
				Headless:    true,
				Autostart:   true,
			},
		},
		{
			name: "保存先と中継先",
			args: []string{"--store", "docs.db", "--mqtt", "tcp://broker:1883", "--tuning", "tuning.toml", "p.yaml"},
			expected: Config{
				ProjectPath: "p.yaml",
				LogLevel:    "info",
				StorePath:   "docs.db",
				MQTTURL:     "tcp://broker:1883",
				TuningPath:  "tuning.toml",
			},
		},
		{
			name:     "check サブコマンド",
			args:     []string{"check", "--log-level", "debug", "p.yaml"},
			expected: Config{ProjectPath: "p.yaml", LogLevel: "debug"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *config != tt.expected {
				t.Errorf("ParseArgs(%v) = %+v, want %+v", tt.args, *config, tt.expected)
			}
		})
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"負のタイムアウト", []string{"--timeout", "-5"}},
		{"不正なログレベル", []string{"--log-level", "verbose"}},
		{"数値でないタイムアウト", []string{"--timeout", "abc"}},
		{"未知のフラグ", []string{"--unknown"}},
		{"位置引数が多すぎる", []string{"a.yaml", "b.yaml"}},
		{"check に引数がない", []string{"check"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := ParseArgs(tt.args); err == nil {
				t.Errorf("ParseArgs(%v) expected error", tt.args)
			}
		})
	}
}

func TestParseArgs_Help(t *testing.T) {
	clearEnv(t)
	if _, err := ParseArgs([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("ParseArgs(--help) error = %v, want pflag.ErrHelp", err)
	}
}

func TestParseArgs_Environment(t *testing.T) {
	t.Run("フラグがなければ環境変数を使う", func(t *testing.T) {
		t.Setenv("HEADLESS", "true")
		t.Setenv("TIMEOUT", "7")
		t.Setenv("LOG_LEVEL", "DEBUG")
		t.Setenv("MQTT_URL", "tcp://env:1883")

		config, err := ParseArgs(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !config.Headless || config.Timeout != 7*time.Second || config.LogLevel != "debug" || config.MQTTURL != "tcp://env:1883" {
			t.Errorf("config = %+v", *config)
		}
	})

	t.Run("フラグが優先", func(t *testing.T) {
		t.Setenv("HEADLESS", "1")
		t.Setenv("TIMEOUT", "7")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("MQTT_URL", "tcp://env:1883")

		config, err := ParseArgs([]string{"--headless=false", "-t", "3", "-l", "warn", "--mqtt", "tcp://flag:1883"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Headless || config.Timeout != 3*time.Second || config.LogLevel != "warn" || config.MQTTURL != "tcp://flag:1883" {
			t.Errorf("config = %+v", *config)
		}
	})

	t.Run("不正な TIMEOUT は無視", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TIMEOUT", "soon")
		config, err := ParseArgs(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Timeout != 0 {
			t.Errorf("Timeout = %v, want 0", config.Timeout)
		}
	})
}
