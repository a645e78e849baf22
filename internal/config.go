package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	GrpcPort             int           `env:"GRPC_PORT,default=9090"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4096"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT,default=2m"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=http://localhost:5173"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=false"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
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
