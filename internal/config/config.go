package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	// MaxMessagesPerSecond of 0 turns inbound rate limiting off.
	MaxMessagesPerSecond float64 `mapstructure:"max_messages_per_second"`
	MessageBurst         int     `mapstructure:"message_burst"`

	DefaultRoom string `mapstructure:"default_room"`
	CORSOrigin  string `mapstructure:"cors_origin"`

	// TLSCert and TLSKey switch the server to HTTPS when both are set.
	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`

	ICE ICEConfig `mapstructure:"ice"`
}

// Plain environment names honoured next to the PEERCALL_ ones, so existing
// .env files keep working.
var plainEnv = map[string]string{
	"port":        "PORT",
	"cors_origin": "CORS_ORIGIN",
	"tls_cert":    "SSL_CERT_PATH",
	"tls_key":     "SSL_KEY_PATH",
}

func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Load reads an optional .env, then config/config.<CONFIG_ENV>.yaml, then
// PEERCALL_* environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("bad .env file")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("PEERCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v, plainEnv, true); err != nil {
		return nil, err
	}
	if err := bindEnv(v, iceEnv, false); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

// bindEnv binds each key to its plain variable name. With prefixed set, the
// PEERCALL_ name is bound first and wins when both are present.
func bindEnv(v *viper.Viper, names map[string]string, prefixed bool) error {
	for key, name := range names {
		input := []string{key}
		if prefixed {
			input = append(input, "PEERCALL_"+strings.ToUpper(key))
		}
		input = append(input, name)
		if err := v.BindEnv(input...); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "peercall-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("max_messages_per_second", 50)
	v.SetDefault("message_burst", 100)
	v.SetDefault("default_room", "default")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("tls_cert", "")
	v.SetDefault("tls_key", "")

	v.SetDefault("ice.stun_server_1", "stun:stun1.l.google.com:19302")
	v.SetDefault("ice.stun_server_2", "stun:stun2.l.google.com:19302")
	v.SetDefault("ice.turn_server", "")
	v.SetDefault("ice.turn_port", 3478)
	v.SetDefault("ice.turn_username", "")
	v.SetDefault("ice.turn_password", "")
	v.SetDefault("ice.candidate_pool_size", 10)
	v.SetDefault("ice.require_turn_credentials", false)
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod {
		return fmt.Errorf("pong_wait (%s) must exceed ping_period (%s)", c.PongWait, c.PingPeriod)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.MaxMessagesPerSecond < 0 {
		return fmt.Errorf("max_messages_per_second must not be negative")
	}
	if c.CORSOrigin != "*" {
		for _, o := range strings.Split(c.CORSOrigin, ",") {
			o = strings.TrimSpace(o)
			if o != "" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
				return fmt.Errorf("cors_origin %q must start with http:// or https://", o)
			}
		}
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("tls_cert and tls_key must be set together")
	}
	if _, err := c.ICE.Servers(); err != nil {
		return fmt.Errorf("ice: %w", err)
	}
	return nil
}
