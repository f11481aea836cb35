package config

import "time"

// Config is the top-level YAML structure of the editor service.
type Config struct {
	Server  ServerConf  `yaml:"server"`
	Log     LogConf     `yaml:"log"`
	Storage StorageConf `yaml:"storage"`
	MQTT    MQTTConf    `yaml:"mqtt"`
	Catalog CatalogConf `yaml:"catalog"`
	Retry   RetryConf   `yaml:"retry"`
	Ready   RetryConf   `yaml:"ready"`
}

type ServerConf struct {
	Addr string `yaml:"addr"`
}

type LogConf struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// StorageConf selects where configurations live.
type StorageConf struct {
	Backend   string `yaml:"backend"` // file | redis
	Dir       string `yaml:"dir"`
	RedisAddr string `yaml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MQTTConf enables the MQTT host link when Broker is set.
type MQTTConf struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type CatalogConf struct {
	Path string `yaml:"path"`
}

// RetryConf bounds a retried host call.
type RetryConf struct {
	IntervalMs  int `yaml:"interval_ms"`
	TimeoutMs   int `yaml:"timeout_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

func (r RetryConf) Interval() time.Duration { return time.Duration(r.IntervalMs) * time.Millisecond }
func (r RetryConf) Timeout() time.Duration  { return time.Duration(r.TimeoutMs) * time.Millisecond }
