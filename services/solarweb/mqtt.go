package solarweb

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"solarweb-backend/lib/scrapers/solaredge"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mazen160/go-random"
)

type MqttConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Tls      bool   `json:"tls"`
	Username string `json:"username"`
	Password string `json:"password"`
	// defaults to "solarweb"
	TopicPrefix string `json:"topic_prefix"`
}

// Publisher mirrors the latest readings onto an MQTT broker so home
// automation can consume them without touching the portal.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	siteId      string
}

func randomClientId() string {
	suffix, err := random.String(8)
	if err != nil {
		return "solarweb"
	}
	return "solarweb-" + suffix
}

func NewPublisher(cfg MqttConfig, siteId string) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.Tls {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(randomClientId())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "solarweb"
	}
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		siteId:      siteId,
	}, nil
}

type readingMessage struct {
	EquipmentId  int64   `json:"equipment_id"`
	SerialNumber string  `json:"serial_number,omitempty"`
	DisplayName  string  `json:"display_name,omitempty"`
	Kind         string  `json:"kind"`
	StartTime    string  `json:"start_time"`
	Wh           float64 `json:"wh"`
}

// PublishSpan emits one retained message per equipment on
// <prefix>/<siteId>/<equipmentId>. Publish failures are logged,
// the reading is already safe in the store.
func (p *Publisher) PublishSpan(ctx context.Context, equipment map[int64]solaredge.Equipment, span solaredge.EnergySpan) {
	for equipmentId, wh := range span.Values {
		equip := equipment[equipmentId]
		payload, err := json.Marshal(readingMessage{
			EquipmentId:  equipmentId,
			SerialNumber: equip.SerialNumber,
			DisplayName:  equip.DisplayName,
			Kind:         equip.Kind().String(),
			StartTime:    span.StartTime.Format(time.RFC3339),
			Wh:           wh,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to marshal reading message", "err", err)
			continue
		}

		topic := fmt.Sprintf("%s/%s/%d", p.topicPrefix, p.siteId, equipmentId)
		if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			slog.ErrorContext(ctx, "failed to publish reading", "topic", topic, "err", token.Error())
		}
	}
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
