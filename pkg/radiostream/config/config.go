package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultTCPPort   = 4403
	DefaultReadSize  = 1024
	DefaultHistory   = 64
	DefaultMessage   = "google.protobuf.Empty"
	DefaultDialLimit = 10 * time.Second
)

type Config struct {
	Device             string              `yaml:"device"`
	TCP                TCP                 `yaml:"tcp"`
	PlaybackLocation   string              `yaml:"playback_location"`
	ReadSize           int                 `yaml:"read_size"`
	ReadDelay          time.Duration       `yaml:"read_delay"`
	DescriptorSet      string              `yaml:"descriptor_set"`
	MessageType        string              `yaml:"message_type"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	LogMessages        bool                `yaml:"log_messages"`
	MetricsInterval    time.Duration       `yaml:"metrics_interval"`
	StatusServer       struct {
		Port    int `yaml:"port"`
		History int `yaml:"history"`
	} `yaml:"status_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type TCP struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Parse decodes YAML config contents and fills in defaults.
func Parse(contents []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return Config{}, errors.Wrap(err, "error unmarshaling yaml")
	}

	if c.Device == "" {
		c.Device = "tcp"
		if c.PlaybackLocation != "" {
			c.Device = "file"
		}
	}
	if c.TCP.Port == 0 {
		c.TCP.Port = DefaultTCPPort
	}
	if c.TCP.DialTimeout == 0 {
		c.TCP.DialTimeout = DefaultDialLimit
	}
	if c.ReadSize <= 0 {
		c.ReadSize = DefaultReadSize
	}
	if c.MessageType == "" {
		c.MessageType = DefaultMessage
	}
	if c.MetricsInterval == 0 {
		c.MetricsInterval = 10 * time.Second
	}
	if c.StatusServer.History <= 0 {
		c.StatusServer.History = DefaultHistory
	}

	switch c.Device {
	case "tcp":
		if c.TCP.Host == "" {
			return Config{}, errors.New("tcp device requires tcp.host")
		}
	case "file":
		if c.PlaybackLocation == "" {
			return Config{}, errors.New("file device requires playback_location")
		}
	default:
		return Config{}, errors.Errorf("unknown device %q", c.Device)
	}

	return c, nil
}

func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "error reading config file")
	}
	return Parse(contents)
}
