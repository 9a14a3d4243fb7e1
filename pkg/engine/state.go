package engine

// RunState は全トリガー経路で共有する実行状態のフラグ。
// スケジューラのバトンを保持している間だけ読み書きする。
type RunState struct {
	// Running は開始ボタンによる実行中
	Running bool
	// ExecutingOnDemand はアクタークリックまたはスタッククリックの実行中
	ExecutingOnDemand bool
	// ExecutingKeyPress はキー押下の実行中
	ExecutingKeyPress bool
	// EventDriven の間はトップレベルのブロックがガード集合で重複排除される
	EventDriven bool

	stop  bool
	epoch uint64
}

// Stopped は停止要求が出ているかどうか
func (s *RunState) Stopped() bool {
	return s.stop
}

// Stop は停止要求を出す。それまでに始まったランはすべて世代が古くなり、
// 後で Resume されても再開しない。
func (s *RunState) Stop() {
	s.stop = true
	s.epoch++
}

// Resume は停止要求を取り下げる
func (s *RunState) Resume() {
	s.stop = false
}

// Epoch は現在の停止世代
func (s *RunState) Epoch() uint64 {
	return s.epoch
}

// guardKey はガード集合のキー。ブロック ID はアクターの文書の中でしか一意でない
type guardKey struct {
	actorID  string
	originID string
}

// guardSet は1回のトリガーパルスで起動済みのブロックの集合
type guardSet map[guardKey]struct{}

// admit はアクターのブロックが未登録なら登録して true を返す
func (g guardSet) admit(actorID, originID string) bool {
	k := guardKey{actorID: actorID, originID: originID}
	if _, ok := g[k]; ok {
		return false
	}
	g[k] = struct{}{}
	return true
}

func (g guardSet) reset() {
	clear(g)
}
