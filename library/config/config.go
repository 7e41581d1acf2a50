package config

import (
	"log"
	"sync"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/Astemirdum/library-catalog/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Store struct {
	Driver     string `envconfig:"STORE_DRIVER"`
	DataFile   string `envconfig:"STORE_DATA_FILE"`
	Seed       bool   `envconfig:"STORE_SEED"`
	MaxRetries int    `envconfig:"STORE_MAX_RETRIES"`
	// Watch reloads the cached snapshot when the data file changes on disk.
	Watch bool `envconfig:"STORE_WATCH"`
}

type Sync struct {
	Interval time.Duration `envconfig:"SYNC_INTERVAL"`
}

type Auth struct {
	DefaultCode    string        `envconfig:"ADMIN_DEFAULT_CODE"`
	CredentialFile string        `envconfig:"AUTH_CREDENTIAL_FILE"`
	JWTKey         string        `envconfig:"AUTH_JWT_KEY" json:"-"`
	SessionTTL     time.Duration `envconfig:"AUTH_SESSION_TTL"`
}

type Config struct {
	Server   HTTPServer   `yaml:"server"`
	Store    Store        `yaml:"store"`
	Database postgres.DB  `yaml:"db"`
	Sync     Sync         `yaml:"sync"`
	Auth     Auth         `yaml:"auth"`
	Kafka    kafka.Config `yaml:"kafka"`
	Log      logger.Log   `yaml:"log"`
}

// Client is the configuration of libraryctl.
type Client struct {
	BaseURL string        `envconfig:"LIBRARY_URL"`
	Timeout time.Duration `envconfig:"LIBRARY_TIMEOUT"`
	Token   string        `envconfig:"LIBRARY_TOKEN" json:"-"`
	Breaker circuit_breaker.Config
	Log     logger.Log
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment. Options set defaults that the environment overrides.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		config := defaultConfig()
		for _, op := range ops {
			op(&config)
		}
		if err := envconfig.Process("", &config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
	})

	return cfg
}

func NewClientConfig() (*Client, error) {
	c := Client{
		BaseURL: "http://localhost:8080",
		Timeout: 10 * time.Second,
	}
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func defaultConfig() Config {
	return Config{
		Server: HTTPServer{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Store: Store{
			Driver:     "file",
			DataFile:   "data/catalog.json",
			Seed:       true,
			MaxRetries: 3,
			Watch:      true,
		},
		Sync: Sync{Interval: 30 * time.Second},
		Auth: Auth{
			DefaultCode:    "admin123",
			CredentialFile: "data/admin.json",
		},
	}
}
