// Package mqtt bridges the lights to an MQTT broker.
package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"lights-controller/internal/config"
	"lights-controller/internal/core"
	"lights-controller/internal/logging"
)

const (
	publishTimeout = 5 * time.Second
	sendTimeout    = 5 * time.Second
)

// Sender accepts state changes. lights.Remote satisfies it.
type Sender interface {
	Send(ctx context.Context, change core.AppStateChange) error
}

// Bridge subscribes to <prefix>/set for AppStateChange JSON and keeps the
// retained <prefix>/state topic in step with the published AppState.
type Bridge struct {
	client mqtt.Client
	sender Sender
	watch  *core.StateWatch
	prefix string
	broker string
	log    zerolog.Logger
}

// New builds a bridge with reconnect handling. It does not connect.
func New(cfg config.MQTTConfig, sender Sender, watch *core.StateWatch) *Bridge {
	b := &Bridge{
		sender: sender,
		watch:  watch,
		prefix: cfg.TopicPrefix,
		broker: cfg.Broker,
		log:    logging.Component("mqtt"),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	// Keep retrying at startup so a broker that boots later is picked up.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(b.topic("availability"), "offline", 1, true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.Warn().Err(err).Msg("connection lost, reconnecting in background")
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		b.log.Debug().Msg("attempting to reconnect")
	})

	b.client = mqtt.NewClient(opts)
	return b
}

func newBridge(client mqtt.Client, sender Sender, watch *core.StateWatch, prefix string) *Bridge {
	return &Bridge{
		client: client,
		sender: sender,
		watch:  watch,
		prefix: prefix,
		log:    logging.Component("mqtt"),
	}
}

func (b *Bridge) topic(sub string) string {
	return b.prefix + "/" + sub
}

// Connect starts the connection loop and waits for the first attempt.
func (b *Bridge) Connect() error {
	b.log.Info().Str("broker", b.broker).Msg("connecting")
	token := b.client.Connect()
	if token.Wait() && token.Error() != nil {
		b.log.Error().Err(token.Error()).Msg("initial connection failed")
		return token.Error()
	}
	return nil
}

// Run publishes each new AppState until ctx is cancelled. Identical
// consecutive snapshots are published once.
func (b *Bridge) Run(ctx context.Context) {
	var version uint64
	var last []byte
	for {
		state, v, err := b.watch.Wait(ctx, version)
		if err != nil {
			return
		}
		version = v

		data, err := json.Marshal(state)
		if err != nil {
			b.log.Error().Err(err).Msg("encode app state")
			continue
		}
		if bytes.Equal(data, last) {
			continue
		}
		if b.publish("state", data, true) {
			last = data
		}
	}
}

// Close announces the bridge offline and disconnects.
func (b *Bridge) Close() {
	if !b.client.IsConnected() {
		return
	}
	token := b.client.Publish(b.topic("availability"), 1, true, "offline")
	if !token.WaitTimeout(2 * time.Second) {
		b.log.Warn().Msg("timed out publishing offline status")
	} else if token.Error() != nil {
		b.log.Warn().Err(token.Error()).Msg("failed to publish offline status")
	}
	b.client.Disconnect(250)
	b.log.Info().Msg("disconnected")
}

func (b *Bridge) publish(sub string, payload any, retained bool) bool {
	if !b.client.IsConnected() {
		return false
	}
	topic := b.topic(sub)
	token := b.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.log.Warn().Str("topic", topic).Msg("publish timed out")
		return false
	}
	if err := token.Error(); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		return false
	}
	return true
}

// onConnect runs on a paho goroutine after every (re)connect.
func (b *Bridge) onConnect(client mqtt.Client) {
	b.log.Info().Msg("connected to broker")

	topic := b.topic("set")
	if token := client.Subscribe(topic, 1, b.handleSet); token.Wait() && token.Error() != nil {
		b.log.Error().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
	} else {
		b.log.Debug().Str("topic", topic).Msg("subscribed")
	}

	go func() {
		b.publish("availability", "online", true)
		state, _ := b.watch.Latest()
		if data, err := json.Marshal(state); err == nil {
			b.publish("state", data, true)
		}
	}()
}

func (b *Bridge) handleSet(_ mqtt.Client, msg mqtt.Message) {
	change, err := core.DecodeChange(msg.Payload())
	if err != nil {
		b.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("rejected message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := b.sender.Send(ctx, change); err != nil {
		b.log.Warn().Err(err).Str("change", change.Kind()).Msg("change not delivered")
		return
	}
	b.log.Debug().Str("change", change.Kind()).Msg("change forwarded")
}
