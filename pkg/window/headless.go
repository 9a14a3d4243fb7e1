package window

import (
	"context"
	"log/slog"
	"time"

	"github.com/zurustar/blockstage/pkg/logger"
)

// Ticker はフレームを進める対象
type Ticker interface {
	Tick(now time.Time)
}

// RunHeadless は画面を出さずに interval ごとにフレームを進める。
// ctx が終了するか timeout（0 は無制限）が経過すると戻る
func RunHeadless(ctx context.Context, t Ticker, interval, timeout time.Duration) error {
	return runHeadless(ctx, t, interval, timeout, logger.GetLogger())
}

func runHeadless(ctx context.Context, t Ticker, interval, timeout time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info("Headless host started", "interval", interval, "timeout", timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frames := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("Headless host stopped", "frames", frames)
			if timeout > 0 && ctx.Err() == context.DeadlineExceeded {
				return nil
			}
			return ctx.Err()
		case now := <-ticker.C:
			t.Tick(now)
			frames++
		}
	}
}
