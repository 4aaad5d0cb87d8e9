package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/truecharts/truenas-go/pkg/rest"
	"github.com/truecharts/truenas-go/pkg/rpc"
)

const (
	EnvPrefix  = "TRUENAS"
	ConfigName = "truenasctl"
)

var (
	ErrMissingURL          = errors.New("config: server.url is required")
	ErrAmbiguousCredential = errors.New("config: set only one of auth.api_key, auth.token or auth.username")
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	URL                string        `mapstructure:"url"`
	Protocol           string        `mapstructure:"protocol"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout"`
	KeepAliveInterval  time.Duration `mapstructure:"keep_alive_interval"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

type AuthConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	OTP      string `mapstructure:"otp"`
	Token    string `mapstructure:"token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// defaults registers every key so that env overrides reach Unmarshal.
var defaults = map[string]interface{}{
	"server.url":                  "",
	"server.protocol":             string(rpc.DefaultProtocol),
	"server.insecure_skip_verify": false,
	"server.handshake_timeout":    rpc.DefaultHandshakeTimeout,
	"server.keep_alive_interval":  30 * time.Second,
	"server.request_timeout":      rest.DefaultTimeout,
	"auth.api_key":                "",
	"auth.username":               "",
	"auth.password":               "",
	"auth.otp":                    "",
	"auth.token":                  "",
	"log.level":                   "info",
	"log.format":                  "console",
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or searches the working directory and ~/.config/truenas for truenasctl.yaml
// when path is empty. A missing file in search mode is not an error. path may start with ~.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("config: expanding %s: %w", path, err)
		}
		path = expanded
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		return decode(v)
	}

	v.SetConfigName(ConfigName)
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "truenas"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config: %w", err)
		}
	}
	return decode(v)
}

// LoadReader reads yaml from r. Environment overrides still apply.
func LoadReader(r io.Reader) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("config: reading config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return ErrMissingURL
	}
	if _, err := rpc.NewProtocol(c.ProtocolName(), nil); err != nil {
		return fmt.Errorf("config: server.protocol: %w", err)
	}

	kinds := 0
	for _, set := range []bool{c.Auth.APIKey != "", c.Auth.Token != "", c.Auth.Username != ""} {
		if set {
			kinds++
		}
	}
	if kinds > 1 {
		return ErrAmbiguousCredential
	}
	return nil
}

func (c *Config) ProtocolName() rpc.ProtocolName {
	return rpc.ProtocolName(strings.ToLower(c.Server.Protocol))
}

// Credentials returns nil for an anonymous session.
func (c *Config) Credentials() rpc.Credentials {
	switch {
	case c.Auth.APIKey != "":
		return rpc.APIKey(c.Auth.APIKey)
	case c.Auth.Token != "":
		return rpc.Token(c.Auth.Token)
	case c.Auth.Username != "":
		return rpc.Password{Username: c.Auth.Username, Password: c.Auth.Password, OTP: c.Auth.OTP}
	}
	return nil
}

// RESTOptions maps the config onto rest client options. Tokens only work over the websocket.
func (c *Config) RESTOptions() []rest.OptionFunc {
	options := []rest.OptionFunc{
		rest.WithInsecureSkipVerify(c.Server.InsecureSkipVerify),
		rest.WithTimeout(c.Server.RequestTimeout),
	}
	switch {
	case c.Auth.APIKey != "":
		options = append(options, rest.WithAPIKey(c.Auth.APIKey))
	case c.Auth.Username != "":
		options = append(options, rest.WithBasicAuth(c.Auth.Username, c.Auth.Password))
	}
	return options
}
