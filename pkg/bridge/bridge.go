// Package bridge はメッセージ送信（broadcast）を MQTT ブローカーと中継する。
//
// ローカルで送信されたメッセージは blockstage/broadcast/<channel> に発行され、
// 同じトピックで受信したメッセージはエンジンの Receive として配送される。
// Receive は送信フックを呼ばないので、受信したメッセージは再発行されない。
// 自分が発行したメッセージのこだまは発行元IDで捨てる。
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/zurustar/blockstage/pkg/logger"
)

// TopicPrefix はメッセージ送信に使うトピックの接頭辞
const TopicPrefix = "blockstage/broadcast/"

// EditTopicPrefix はスクリプトの遠隔編集に使うトピックの接頭辞。
// blockstage/edit/<actor> に Edit を JSON で送る
const EditTopicPrefix = "blockstage/edit/"

// outboxSize は発行待ちメッセージの上限。溢れた分は捨てる
const outboxSize = 64

// Transport はブローカーとの接続
type Transport interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Close()
}

// Receiver は外部からのメッセージを受け付けるエンジン
type Receiver interface {
	Receive(channel string) <-chan struct{}
}

// Edit はブロックのフィールド1つへの編集
type Edit struct {
	Actor string `json:"-"`
	Block string `json:"block"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// Editor は遠隔編集を受け付ける
type Editor interface {
	ApplyEdit(ed Edit) error
}

// Bridge はエンジンとブローカーの中継
type Bridge struct {
	transport Transport
	origin    string
	log       *slog.Logger
	editor    Editor

	out chan string
}

// Option は Bridge の設定
type Option func(*Bridge)

// WithLogger はロガーを設定する
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithOrigin は発行元IDを固定する
func WithOrigin(origin string) Option {
	return func(b *Bridge) { b.origin = origin }
}

// WithEditor は遠隔編集の受け付け先を設定する
func WithEditor(ed Editor) Option {
	return func(b *Bridge) { b.editor = ed }
}

// New は Bridge を作成する
func New(t Transport, opts ...Option) *Bridge {
	b := &Bridge{
		transport: t,
		origin:    "blockstage-" + uuid.New().String(),
		out:       make(chan string, outboxSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.GetLogger()
	}
	return b
}

// Origin は発行元IDを返す
func (b *Bridge) Origin() string {
	return b.origin
}

// Topic はチャンネルに対応するトピックを返す
func Topic(channel string) string {
	return TopicPrefix + channel
}

// Hook はエンジンのメッセージ送信フックとして登録する関数。
// スケジューラの実行権を持ったまま呼ばれるので、発行はキューに積むだけにする。
func (b *Bridge) Hook(channel string) {
	if strings.ContainsAny(channel, "+#") {
		b.log.Warn("Channel cannot be published as MQTT topic", "channel", channel)
		return
	}
	select {
	case b.out <- channel:
	default:
		b.log.Warn("Bridge outbox full, dropping broadcast", "channel", channel)
	}
}

// Run は受信を購読し、ctx が終了するまで発行キューを処理する
func (b *Bridge) Run(ctx context.Context, target Receiver) error {
	err := b.transport.Subscribe(TopicPrefix+"#", func(topic string, payload []byte) {
		b.receive(target, topic, payload)
	})
	if err != nil {
		return err
	}
	b.log.Info("Bridge subscribed", "topic", TopicPrefix+"#", "origin", b.origin)

	if b.editor != nil {
		if err := b.transport.Subscribe(EditTopicPrefix+"#", b.receiveEdit); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case channel := <-b.out:
			if err := b.transport.Publish(Topic(channel), []byte(b.origin)); err != nil {
				b.log.Warn("Failed to publish broadcast", "channel", channel, "error", err)
			}
		}
	}
}

// receive はブローカーからのメッセージをエンジンに配送する
func (b *Bridge) receive(target Receiver, topic string, payload []byte) {
	channel, ok := strings.CutPrefix(topic, TopicPrefix)
	if !ok || channel == "" {
		return
	}
	if string(payload) == b.origin {
		return
	}
	b.log.Debug("Bridge received broadcast", "channel", channel, "from", string(payload))
	target.Receive(channel)
}

// receiveEdit は遠隔編集を Editor に渡す
func (b *Bridge) receiveEdit(topic string, payload []byte) {
	actorID, ok := strings.CutPrefix(topic, EditTopicPrefix)
	if !ok || actorID == "" {
		return
	}
	var ed Edit
	if err := json.Unmarshal(payload, &ed); err != nil {
		b.log.Warn("Malformed edit message", "actor", actorID, "error", err)
		return
	}
	ed.Actor = actorID
	if err := b.editor.ApplyEdit(ed); err != nil {
		b.log.Warn("Failed to apply edit", "actor", actorID, "block", ed.Block, "field", ed.Field, "error", err)
	}
}
