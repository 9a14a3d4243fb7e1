// Package logger はアプリケーション全体で使う slog ロガーを管理する。
// 出力は charmbracelet/log のハンドラで整形する。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

var globalLogger *slog.Logger

// InitLogger ログレベルに応じてslogを初期化
func InitLogger(level string) error {
	return InitLoggerTo(os.Stderr, level)
}

// InitLoggerTo は出力先を指定してロガーを初期化する
func InitLoggerTo(w io.Writer, level string) error {
	var lv log.Level

	switch level {
	case "debug":
		lv = log.DebugLevel
	case "info":
		lv = log.InfoLevel
	case "warn":
		lv = log.WarnLevel
	case "error":
		lv = log.ErrorLevel
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           lv,
		ReportTimestamp: true,
		Prefix:          "blockstage",
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger グローバルロガーを取得
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		// デフォルトロガーを返す
		return slog.Default()
	}
	return globalLogger
}
