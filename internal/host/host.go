// Package host defines the controller operations the editor depends on and
// provides adapters for them: configuration storage on disk or in Redis,
// device actions and reload requests over MQTT, and a device catalog read
// from YAML.
package host

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
	"github.com/gyaneshwarpardhi/sensoredit/internal/notify"
)

// ErrTimeout is returned when the host does not become ready in time.
var ErrTimeout = errors.New("host did not become ready in time")

// Store persists a sensor's configuration blob and reads its runtime state.
// Load returns nil data for a sensor that was never configured.
type Store interface {
	Persist(ctx context.Context, sensorID string, data []byte) error
	Load(ctx context.Context, sensorID string) ([]byte, error)
	LoadState(ctx context.Context, sensorID string) ([]byte, error)
}

// DeviceInvoker runs a service action on a device, e.g. to test an action
// row from the editor.
type DeviceInvoker interface {
	InvokeDeviceAction(ctx context.Context, device int, service, action string, params []activity.Param) error
}

// Reloader restarts the host's logic engine and reports when it is back.
type Reloader interface {
	RequestReload(ctx context.Context) error
	Ready(ctx context.Context) (bool, error)
}

// SceneManager maintains the host scenes that deliver host-native
// notifications.
type SceneManager interface {
	CreateNotifyScene(ctx context.Context, sensorID string, e *notify.Entry) (int, error)
	DeleteScene(ctx context.Context, scene int) error
}

// DeviceCatalog lists the controller's devices and the arguments of their
// actions.
type DeviceCatalog interface {
	activity.ParamCatalog
	ListDevices() []Device
	Device(id int) (Device, bool)
}

var _ DeviceCatalog = (*Catalog)(nil)
