package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	StatsMemory = "memory"
	StatsRedis  = "redis"
	StatsBadger = "badger"
)

type AppConfig struct {
	Env         string `yaml:"env" env:"ENV" env-default:"dev"`
	ApiID       int32  `yaml:"api_id" env:"TELEGRAM_API_ID" env-required:"true"`
	ApiHash     string `yaml:"api_hash" env:"TELEGRAM_API_HASH" env-required:"true"`
	UsersFile   string `yaml:"users_file" env:"USERS_FILE" env-default:"users.json"`
	SessionsDir string `yaml:"sessions_dir" env:"SESSIONS_DIR" env-default:"sessions"`

	Forward ForwardConfig `yaml:"forward"`
	Stats   StatsConfig   `yaml:"stats"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	TDLib   TDLibConfig   `yaml:"tdlib"`
}

// ForwardConfig без env-default: cleanenv подставляет default поверх нулевого значения,
// и reload: false или min_delay: 0s из файла терялись бы. Умолчания см. defaultForward.
type ForwardConfig struct {
	// задержка между отправками в разные чаты, защита от антиспама Telegram
	MinDelay time.Duration `yaml:"min_delay" env:"FORWARD_MIN_DELAY"`
	MaxDelay time.Duration `yaml:"max_delay" env:"FORWARD_MAX_DELAY"`
	Reload   bool          `yaml:"reload" env:"FORWARD_RELOAD"`
}

func defaultForward() ForwardConfig {
	return ForwardConfig{
		MinDelay: 2 * time.Second,
		MaxDelay: 4 * time.Second,
		Reload:   true,
	}
}

type StatsConfig struct {
	Backend       string `yaml:"backend" env:"STATS_BACKEND" env-default:"memory"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	BadgerDir     string `yaml:"badger_dir" env:"BADGER_DIR" env-default:"stats"`
}

type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled" env:"PROXY_ENABLED"`
	Server   string `yaml:"server" env:"PROXY_SERVER"`
	Port     int32  `yaml:"port" env:"PROXY_PORT"`
	Username string `yaml:"username" env:"PROXY_USERNAME"`
	Password string `yaml:"password" env:"PROXY_PASSWORD"`
}

type TDLibConfig struct {
	DeviceModel   string `yaml:"device_model" env:"TDLIB_DEVICE_MODEL" env-default:"Desktop"`
	SystemVersion string `yaml:"system_version" env:"TDLIB_SYSTEM_VERSION" env-default:"Windows 10"`
	AppVersion    string `yaml:"app_version" env:"TDLIB_APP_VERSION" env-default:"2.0"`
	LangCode      string `yaml:"lang_code" env:"TDLIB_LANG_CODE" env-default:"en"`
}

// Load читает настройки: .env (если есть) → yaml-файл (если задан) → переменные окружения
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	// значения, которых нет ни в файле, ни в окружении, остаются из defaultForward
	cfg := AppConfig{Forward: defaultForward()}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфига: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.ApiID == 0 || c.ApiHash == "" {
		return errors.New("TELEGRAM_API_ID, TELEGRAM_API_HASH должны быть заданы")
	}
	if c.Forward.MinDelay < 0 || c.Forward.MaxDelay < c.Forward.MinDelay {
		return fmt.Errorf("invalid forward delay range [%s, %s]", c.Forward.MinDelay, c.Forward.MaxDelay)
	}
	switch c.Stats.Backend {
	case StatsMemory, StatsRedis, StatsBadger:
	default:
		return fmt.Errorf("unknown stats backend %q", c.Stats.Backend)
	}
	return nil
}
