package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
)

// StatusReady is the payload the host publishes on its status topic once
// its logic engine is running.
const StatusReady = "ready"

// DialMQTT connects to broker.
func DialMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// MQTTHost drives the controller over MQTT. Device actions go to
// <prefix>/devices/<id>/action, reload requests to <prefix>/host/reload,
// and the host reports its state on <prefix>/host/status.
type MQTTHost struct {
	client mqtt.Client
	prefix string
	log    *slog.Logger

	mu       sync.Mutex
	status   string
	statusAt time.Time
	reloadAt time.Time
	now      func() time.Time
}

// NewMQTTHost subscribes to the host status topic.
func NewMQTTHost(client mqtt.Client, prefix string, logger *slog.Logger) (*MQTTHost, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &MQTTHost{client: client, prefix: prefix, log: logger, now: time.Now}
	token := client.Subscribe(h.topic("host/status"), 1, h.onStatus)
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("subscribe host status: %w", token.Error())
	}
	return h, nil
}

func (h *MQTTHost) topic(suffix string) string {
	if h.prefix == "" {
		return suffix
	}
	return h.prefix + "/" + suffix
}

func (h *MQTTHost) onStatus(_ mqtt.Client, msg mqtt.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = string(msg.Payload())
	h.statusAt = h.now()
	h.log.Debug("host status", "status", h.status)
}

type deviceActionMsg struct {
	Service string            `json:"service"`
	Action  string            `json:"action"`
	Params  map[string]string `json:"params,omitempty"`
}

func (h *MQTTHost) InvokeDeviceAction(ctx context.Context, device int, service, action string, params []activity.Param) error {
	msg := deviceActionMsg{Service: service, Action: action}
	if len(params) > 0 {
		msg.Params = make(map[string]string, len(params))
		for _, p := range params {
			msg.Params[p.Name] = p.Value
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := h.topic("devices/" + strconv.Itoa(device) + "/action")
	if err := wait(ctx, h.client.Publish(topic, 1, false, payload)); err != nil {
		return fmt.Errorf("invoke %s on device %d: %w", action, device, err)
	}
	return nil
}

// RequestReload asks the host to restart. Status reports received before
// the request no longer count towards readiness.
func (h *MQTTHost) RequestReload(ctx context.Context) error {
	h.mu.Lock()
	h.reloadAt = h.now()
	h.status = ""
	h.mu.Unlock()
	if err := wait(ctx, h.client.Publish(h.topic("host/reload"), 1, false, []byte("reload"))); err != nil {
		return fmt.Errorf("request reload: %w", err)
	}
	return nil
}

func (h *MQTTHost) Ready(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !h.client.IsConnectionOpen() {
		return false, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status == StatusReady && !h.statusAt.Before(h.reloadAt), nil
}

func wait(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
