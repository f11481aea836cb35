package host

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/sensoredit/internal/activity"
)

// Device describes one controller device and the actions it accepts.
type Device struct {
	ID       int       `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Room     string    `yaml:"room,omitempty" json:"room,omitempty"`
	Services []Service `yaml:"services" json:"services"`
}

type Service struct {
	ID        string   `yaml:"id" json:"id"`
	Variables []string `yaml:"variables,omitempty" json:"variables,omitempty"`
	Actions   []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

type Action struct {
	Name   string               `yaml:"name" json:"name"`
	Params []activity.ParamInfo `yaml:"params,omitempty" json:"params,omitempty"`
}

type catalogFile struct {
	Devices []Device `yaml:"devices"`
}

// Catalog is the device list read from a YAML file. It is safe for
// concurrent use and can be replaced in place when the file changes.
type Catalog struct {
	mu      sync.RWMutex
	devices map[int]*Device
}

// LoadCatalog reads path. A missing path gives an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{devices: map[int]*Device{}}
	if path == "" {
		return c, nil
	}
	if err := c.Reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseCatalog builds a catalog from YAML bytes.
func ParseCatalog(data []byte) (*Catalog, error) {
	devs, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}
	return &Catalog{devices: devs}, nil
}

// Reload re-reads path and swaps the device list. On error the previous
// list stays.
func (c *Catalog) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	devs, err := parseCatalog(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.devices = devs
	c.mu.Unlock()
	return nil
}

func parseCatalog(data []byte) (map[int]*Device, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	devs := make(map[int]*Device, len(f.Devices))
	for i := range f.Devices {
		d := &f.Devices[i]
		if d.ID <= 0 {
			return nil, fmt.Errorf("catalog device %q: id must be positive", d.Name)
		}
		if _, dup := devs[d.ID]; dup {
			return nil, fmt.Errorf("catalog device %d: duplicate id", d.ID)
		}
		devs[d.ID] = d
	}
	return devs, nil
}

// ListDevices returns all devices ordered by id.
func (c *Catalog) ListDevices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Device(id int) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// ActionParams implements activity.ParamCatalog.
func (c *Catalog) ActionParams(device int, service, action string) ([]activity.ParamInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[device]
	if !ok {
		return nil, false
	}
	for _, s := range d.Services {
		if s.ID != service {
			continue
		}
		for _, a := range s.Actions {
			if a.Name == action {
				return a.Params, true
			}
		}
	}
	return nil, false
}
