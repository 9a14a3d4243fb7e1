package bridge

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// waitTimeout はブローカー応答の待ち時間
const waitTimeout = 10 * time.Second

// MQTT は paho クライアントによる Transport
type MQTT struct {
	client paho.Client
}

// Dial はブローカーに接続する。接続が切れた場合は自動で再接続する
func Dial(brokerURL, clientID string) (*MQTT, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	m := &MQTT{client: paho.NewClient(opts)}
	if err := wait(m.client.Connect(), "connect"); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", brokerURL, err)
	}
	return m, nil
}

// Publish はメッセージを発行する
func (m *MQTT) Publish(topic string, payload []byte) error {
	return wait(m.client.Publish(topic, 1, false, payload), "publish "+topic)
}

// Subscribe はトピックを購読する
func (m *MQTT) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := m.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	return wait(token, "subscribe "+topic)
}

// Close は接続を閉じる
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

func wait(token paho.Token, what string) error {
	if !token.WaitTimeout(waitTimeout) {
		return fmt.Errorf("mqtt %s: timeout", what)
	}
	return token.Error()
}
