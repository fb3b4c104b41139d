package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for both transports.
type Server struct {
	HTTPAddr string
	TCPAddr  string

	// TLS for the raw-stream transport. Both empty means plain TCP.
	TLSCertFile string
	TLSKeyFile  string

	// Terminator delimits commands on the raw stream. Fixed, non-empty.
	Terminator string
	// MaxFrameBuffer bounds the per-connection reassembly buffer. A
	// connection that exceeds it without sending a terminator is dropped.
	MaxFrameBuffer int
	// ReadTimeout bounds how long a raw-stream connection may stay silent.
	ReadTimeout time.Duration

	SessionTTL    time.Duration
	SweepInterval time.Duration
	JWTSigningKey string

	// RecordKey is the process-wide AES-256 key for identity records,
	// hex-encoded in the environment.
	RecordKey []byte

	DatabaseURL string
	RedisURL    string
}

// FromEnv builds a Server config from environment variables so main stays
// lean. The two key secrets are required; everything else defaults.
func FromEnv() (Server, error) {
	cfg := Server{
		HTTPAddr:       getEnv("IDWALLET_HTTP_ADDR", ":8443"),
		TCPAddr:        getEnv("IDWALLET_TCP_ADDR", ":1234"),
		TLSCertFile:    os.Getenv("IDWALLET_TLS_CERT"),
		TLSKeyFile:     os.Getenv("IDWALLET_TLS_KEY"),
		Terminator:     getEnv("IDWALLET_TERMINATOR", "###"),
		MaxFrameBuffer: getEnvInt("IDWALLET_MAX_FRAME_BUFFER", 64*1024),
		ReadTimeout:    getEnvDuration("IDWALLET_READ_TIMEOUT", 5*time.Minute),
		SessionTTL:     getEnvDuration("IDWALLET_SESSION_TTL", 24*time.Hour),
		SweepInterval:  getEnvDuration("IDWALLET_SWEEP_INTERVAL", 10*time.Minute),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
	}

	// No fallback: a well-known signing key would let anyone mint tokens.
	cfg.JWTSigningKey = os.Getenv("JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		return Server{}, fmt.Errorf("JWT_SIGNING_KEY must be set")
	}

	keyHex := os.Getenv("IDWALLET_RECORD_KEY")
	if keyHex == "" {
		return Server{}, fmt.Errorf("IDWALLET_RECORD_KEY must be set")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return Server{}, fmt.Errorf("parse IDWALLET_RECORD_KEY: %w", err)
	}
	if len(key) != 32 {
		return Server{}, fmt.Errorf("IDWALLET_RECORD_KEY must be 32 bytes, got %d", len(key))
	}
	cfg.RecordKey = key

	if cfg.Terminator == "" {
		return Server{}, fmt.Errorf("IDWALLET_TERMINATOR must be non-empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
