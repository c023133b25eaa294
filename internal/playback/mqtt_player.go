package playback

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// 扬声器指令
const (
	ActionLoad   = "load"
	ActionVolume = "volume"
	ActionPlay   = "play"
	ActionPause  = "pause"
	ActionSeek   = "seek_start"
)

// Command 发往扬声器的指令
type Command struct {
	Action    string   `json:"action"`
	StationID string   `json:"station_id"`
	Source    string   `json:"source,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	At        int64    `json:"at"`
}

// MessagePublisher MQTT 发布接口（common/mqtt.Client 实现）
type MessagePublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPlayer 通过 MQTT 驱动站点扬声器
// 主题：<prefix>/<stationID>/speaker
type MQTTPlayer struct {
	pub       MessagePublisher
	topic     string
	qos       byte
	stationID string
	logger    *zap.Logger
}

// NewMQTTPlayer 创建 MQTT 播放器
func NewMQTTPlayer(pub MessagePublisher, topicPrefix, stationID string, qos byte, logger *zap.Logger) *MQTTPlayer {
	return &MQTTPlayer{
		pub:       pub,
		topic:     SpeakerTopic(topicPrefix, stationID),
		qos:       qos,
		stationID: stationID,
		logger:    logger,
	}
}

// SpeakerTopic 站点扬声器主题
func SpeakerTopic(prefix, stationID string) string {
	if prefix == "" {
		prefix = "zil"
	}
	return prefix + "/" + stationID + "/speaker"
}

// Topic 发布的主题
func (p *MQTTPlayer) Topic() string {
	return p.topic
}

func (p *MQTTPlayer) Load(src string) error {
	return p.send(Command{Action: ActionLoad, Source: src})
}

func (p *MQTTPlayer) SetVolume(v float64) error {
	return p.send(Command{Action: ActionVolume, Volume: &v})
}

func (p *MQTTPlayer) Play() error {
	return p.send(Command{Action: ActionPlay})
}

func (p *MQTTPlayer) Pause() error {
	return p.send(Command{Action: ActionPause})
}

func (p *MQTTPlayer) SeekStart() error {
	return p.send(Command{Action: ActionSeek})
}

func (p *MQTTPlayer) send(cmd Command) error {
	cmd.StationID = p.stationID
	cmd.At = time.Now().UnixMilli()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal speaker command: %w", err)
	}
	if err := p.pub.Publish(p.topic, p.qos, false, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	p.logger.Debug("Speaker command sent",
		zap.String("topic", p.topic),
		zap.String("action", cmd.Action),
	)
	return nil
}
