// Package settings loads the routewatch configuration.
//
// Values are layered: built-in defaults, then the YAML file, then a .env
// file (which never overrides variables already set), then ROUTEWATCH_*
// environment variables.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/routewatch/pkg/util"
)

// DefaultPath is where the configuration is read from when -c is not given.
const DefaultPath = "/etc/routewatch/routewatch.yaml"

// Settings is the complete runtime configuration.
type Settings struct {
	Interval      time.Duration `yaml:"interval"`
	Workers       int           `yaml:"workers"`
	DeviceTimeout time.Duration `yaml:"device_timeout"`

	NETCONF NETCONF `yaml:"netconf"`
	NetBox  NetBox  `yaml:"netbox"`

	// InventoryFile selects a static YAML inventory instead of NetBox.
	InventoryFile string `yaml:"inventory_file,omitempty"`

	Server Server `yaml:"server"`
	Output Output `yaml:"output"`
	Redis  Redis  `yaml:"redis"`
	AMQP   AMQP   `yaml:"amqp"`
	Skogul Skogul `yaml:"skogul"`
	SQLite SQLite `yaml:"sqlite"`

	History History `yaml:"history"`
	Log     Log     `yaml:"log"`
}

// Credentials for one NETCONF login.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NETCONF configures the device sessions.
type NETCONF struct {
	Port        int           `yaml:"port"`
	Credentials `yaml:",inline"`
	Timeout     time.Duration `yaml:"timeout"`
	KnownHosts  []string      `yaml:"known_hosts,omitempty"`
	// MaxReplySize caps one rpc-reply in bytes.
	MaxReplySize int64 `yaml:"max_reply_size"`
	// Overrides maps a device address to its own credentials.
	Overrides map[string]Credentials `yaml:"overrides,omitempty"`
}

// NetBox configures the inventory client.
type NetBox struct {
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	PageSize  int           `yaml:"page_size"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Server configures the HTTP read API.
type Server struct {
	Listen    string  `yaml:"listen"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// Output configures the JSON file sink. An empty File disables it.
type Output struct {
	File string `yaml:"file"`
}

// Redis configures the Redis sink. An empty Addr disables it.
type Redis struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// AMQP configures the RabbitMQ sink. An empty URL disables it.
type AMQP struct {
	URL        string        `yaml:"url,omitempty"`
	Exchange   string        `yaml:"exchange,omitempty"`
	RoutingKey string        `yaml:"routing_key,omitempty"`
	Expiration time.Duration `yaml:"expiration,omitempty"`
}

// Skogul configures the skogul sink. An empty Config disables it.
type Skogul struct {
	Config  string `yaml:"config,omitempty"`
	Handler string `yaml:"handler,omitempty"`
}

// SQLite configures the SQLite sink. An empty Path disables it.
type SQLite struct {
	Path string `yaml:"path,omitempty"`
}

// History configures the cycle journal. An empty File disables it.
type History struct {
	File       string `yaml:"file,omitempty"`
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Settings {
	return &Settings{
		Interval:      5 * time.Minute,
		Workers:       10,
		DeviceTimeout: 90 * time.Second,
		NETCONF: NETCONF{
			Port:         830,
			Timeout:      30 * time.Second,
			MaxReplySize: 64 << 20,
		},
		NetBox: NetBox{
			PageSize:  100,
			RateLimit: 20,
			Burst:     5,
			Timeout:   30 * time.Second,
		},
		Server: Server{
			Listen:    "0.0.0.0:8043",
			RateLimit: 100,
			Burst:     200,
		},
		Output: Output{File: "result/tmp.json"},
		History: History{
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 10,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides. An empty path means DefaultPath, which may be absent; an
// explicit path must exist. The result is not validated.
func Load(path string) (*Settings, error) {
	s := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		util.Debugf("no configuration at %s, using defaults", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment without overriding ones already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies ROUTEWATCH_* overrides read through lookup.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"ROUTEWATCH_NETBOX_URL":       &s.NetBox.URL,
		"ROUTEWATCH_NETBOX_TOKEN":     &s.NetBox.Token,
		"ROUTEWATCH_NETCONF_USERNAME": &s.NETCONF.Username,
		"ROUTEWATCH_NETCONF_PASSWORD": &s.NETCONF.Password,
		"ROUTEWATCH_LISTEN":           &s.Server.Listen,
		"ROUTEWATCH_LOG_LEVEL":        &s.Log.Level,
		"ROUTEWATCH_REDIS_ADDR":       &s.Redis.Addr,
		"ROUTEWATCH_REDIS_PASSWORD":   &s.Redis.Password,
		"ROUTEWATCH_AMQP_URL":         &s.AMQP.URL,
		"ROUTEWATCH_INVENTORY_FILE":   &s.InventoryFile,
		"ROUTEWATCH_HISTORY_FILE":     &s.History.File,
	}
	for name, field := range str {
		if v, ok := lookup(name); ok {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"ROUTEWATCH_INTERVAL":       &s.Interval,
		"ROUTEWATCH_DEVICE_TIMEOUT": &s.DeviceTimeout,
	}
	for name, field := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", util.ErrInvalidConfig, name, err)
			}
			*field = d
		}
	}

	if v, ok := lookup("ROUTEWATCH_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: ROUTEWATCH_WORKERS: %v", util.ErrInvalidConfig, err)
		}
		s.Workers = n
	}
	return nil
}

// Validate checks the configuration for values the components cannot run
// with.
func (s *Settings) Validate() error {
	v := &util.ValidationBuilder{}

	v.Add(s.Interval > 0, "interval must be positive")
	v.Add(s.Workers >= 1, "workers must be at least 1")
	v.Add(s.DeviceTimeout > 0, "device_timeout must be positive")

	v.Add(s.NETCONF.Port > 0 && s.NETCONF.Port <= 65535, "netconf.port must be between 1 and 65535")
	v.Add(s.NETCONF.Username != "", "netconf.username is required")
	v.Add(s.NETCONF.Timeout > 0, "netconf.timeout must be positive")
	v.Add(s.NETCONF.MaxReplySize > 0, "netconf.max_reply_size must be positive")
	for addr, c := range s.NETCONF.Overrides {
		v.Add(util.IsIPAddress(addr), fmt.Sprintf("netconf.overrides: %q is not an IP address", addr))
		v.Add(c.Username != "", fmt.Sprintf("netconf.overrides[%s].username is required", addr))
	}

	switch {
	case s.InventoryFile != "" && s.NetBox.URL != "":
		v.AddErrorf("netbox.url and inventory_file are mutually exclusive")
	case s.InventoryFile == "" && s.NetBox.URL == "":
		v.AddErrorf("one of netbox.url or inventory_file is required")
	case s.NetBox.URL != "":
		u, err := url.Parse(s.NetBox.URL)
		v.Add(err == nil && u.Host != "", fmt.Sprintf("netbox.url %q is not a valid URL", s.NetBox.URL))
		v.Add(s.NetBox.Token != "", "netbox.token is required with netbox.url")
		v.Add(s.NetBox.PageSize > 0, "netbox.page_size must be positive")
		v.Add(s.NetBox.RateLimit > 0, "netbox.rate_limit must be positive")
	}

	_, _, err := net.SplitHostPort(s.Server.Listen)
	v.Add(err == nil, fmt.Sprintf("server.listen %q is not host:port", s.Server.Listen))

	if s.AMQP.URL != "" {
		u, err := url.Parse(s.AMQP.URL)
		v.Add(err == nil && (u.Scheme == "amqp" || u.Scheme == "amqps"),
			fmt.Sprintf("amqp.url %q must use the amqp or amqps scheme", maskURL(s.AMQP.URL)))
	}
	v.Add(s.Redis.DB >= 0, "redis.db must not be negative")
	if s.History.File != "" {
		v.Add(s.History.MaxSize >= 0, "history.max_size must not be negative")
		v.Add(s.History.MaxBackups >= 0, "history.max_backups must not be negative")
	}

	_, err = logrus.ParseLevel(s.Log.Level)
	v.Add(err == nil, fmt.Sprintf("log.level %q is not a valid level", s.Log.Level))

	return v.Build()
}

// Masked returns a copy with passwords and tokens replaced, for display.
func (s *Settings) Masked() *Settings {
	c := *s
	c.NETCONF.Password = Mask(c.NETCONF.Password)
	c.NetBox.Token = util.MaskSecret(c.NetBox.Token)
	c.Redis.Password = Mask(c.Redis.Password)
	c.AMQP.URL = maskURL(c.AMQP.URL)
	if s.NETCONF.Overrides != nil {
		c.NETCONF.Overrides = make(map[string]Credentials, len(s.NETCONF.Overrides))
		for addr, cred := range s.NETCONF.Overrides {
			cred.Password = Mask(cred.Password)
			c.NETCONF.Overrides[addr] = cred
		}
	}
	return &c
}

// Mask hides a secret, keeping only whether it was set.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// SaveTo writes the settings as YAML, creating the directory if needed.
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
