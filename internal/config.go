package internal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	GRPCPort             int           `env:"GRPC_PORT,default=8081"`
	HTTPPort             int           `env:"HTTP_PORT,default=8080"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	TransitionBufferSize int           `env:"TRANSITION_BUFFER_SIZE,default=1024"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,default=1m"`
	AuthSecret           string        `env:"AUTH_SECRET,required=true"`
	AuthIssuer           string        `env:"AUTH_ISSUER,default=pulse-chat"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	FrameRate            int           `env:"FRAME_RATE,default=20"`
	FrameBurst           int           `env:"FRAME_BURST,default=40"`
	StoreMaxFailures     int           `env:"STORE_BREAKER_FAILURES,default=5"`
	StoreBreakerTimeout  time.Duration `env:"STORE_BREAKER_TIMEOUT,default=10s"`
	UserStore            string        `env:"USER_STORE,default=badger"`
	DatabaseURL          string        `env:"DATABASE_URL"`
}

const (
	UserStoreBadger   = "badger"
	UserStorePostgres = "postgres"
)

// Load reads the optional .env file then the environment, the environment wins.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("cannot read env file: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if _, err := CharacterRune(config.CharReplacement); err != nil {
		return Config{}, err
	}
	switch config.UserStore {
	case UserStoreBadger:
	case UserStorePostgres:
		if config.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when USER_STORE=%s", UserStorePostgres)
		}
	default:
		return Config{}, fmt.Errorf("unknown USER_STORE %q", config.UserStore)
	}
	return config, nil
}

// Origins splits the comma separated ALLOWED_ORIGINS.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
