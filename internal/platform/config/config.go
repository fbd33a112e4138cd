package config

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	id "idcheck/pkg/domain"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Database        DatabaseConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	RateLimit       RateLimitConfig
	Cache           CacheConfig

	// SubjectHashKey keys the identifier hashes kept in the ledger, audit
	// trail and cache. Required once hashes outlive the process.
	SubjectHashKey []byte
	// TrustedProxies lists peers whose X-Forwarded-For and X-Real-IP headers
	// are believed. Empty means the TCP peer is always the client.
	TrustedProxies []netip.Prefix
}

// DatabaseConfig selects and tunes the PostgreSQL connection.
// An empty URL keeps the ledger and audit trail in memory.
type DatabaseConfig struct {
	URL          string
	Driver       string // "postgres" (lib/pq) or "pgx"
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// RedisConfig tunes the go-redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables publishing audit events. No brokers means audit
// events stay in the configured store only.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
	Partitions int32
	Replicas   int16
}

// RateLimitConfig bounds public checksum traffic per client IP.
type RateLimitConfig struct {
	Enabled   bool
	PerWindow int
	Window    time.Duration
}

// CacheConfig controls the verification result cache.
type CacheConfig struct {
	TTL time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []string
	durationVar := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, key+" must be a positive duration")
			return def
		}
		return d
	}
	intVar := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		i, err := strconv.Atoi(v)
		if err != nil || i < 0 {
			errs = append(errs, key+" must be a non-negative integer")
			return def
		}
		return i
	}

	cfg := Server{
		Addr:            envOr("IDCHECK_ADDR", ":8080"),
		AdminToken:      os.Getenv("ADMIN_API_TOKEN"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		ShutdownTimeout: durationVar("SHUTDOWN_TIMEOUT", 10*time.Second),
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       envOr("DATABASE_DRIVER", "postgres"),
			MaxOpenConns: intVar("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: intVar("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLife:  durationVar("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intVar("REDIS_POOL_SIZE", 10),
			MinIdleConns: intVar("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationVar("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationVar("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationVar("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: envOr("AUDIT_TOPIC", "idcheck.audit"),
			Partitions: int32(intVar("AUDIT_TOPIC_PARTITIONS", 1)),
			Replicas:   int16(intVar("AUDIT_TOPIC_REPLICAS", 1)),
		},
		RateLimit: RateLimitConfig{
			Enabled:   os.Getenv("RATE_LIMIT_DISABLED") != "true",
			PerWindow: intVar("RATE_LIMIT_PER_MINUTE", 120),
			Window:    time.Minute,
		},
		Cache: CacheConfig{
			TTL: durationVar("VERIFICATION_CACHE_TTL", 5*time.Minute),
		},
	}

	if raw := os.Getenv("SUBJECT_HASH_KEY"); raw != "" {
		key, err := hex.DecodeString(raw)
		switch {
		case err != nil:
			errs = append(errs, "SUBJECT_HASH_KEY must be hex encoded")
		case len(key) < id.MinSubjectKeySize || len(key) > id.MaxSubjectKeySize:
			errs = append(errs, fmt.Sprintf("SUBJECT_HASH_KEY must decode to %d-%d bytes", id.MinSubjectKeySize, id.MaxSubjectKeySize))
		default:
			cfg.SubjectHashKey = key
		}
	} else if cfg.Database.URL != "" || cfg.Redis.URL != "" {
		errs = append(errs, "SUBJECT_HASH_KEY is required when DATABASE_URL or REDIS_URL is set")
	}

	for _, entry := range splitList(os.Getenv("TRUSTED_PROXIES")) {
		prefix, err := parsePrefix(entry)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP or CIDR", entry))
			continue
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, prefix)
	}

	switch cfg.Database.Driver {
	case "postgres", "pgx":
	default:
		errs = append(errs, "DATABASE_DRIVER must be postgres or pgx")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.PerWindow == 0 {
		errs = append(errs, "RATE_LIMIT_PER_MINUTE must be positive when rate limiting is enabled")
	}

	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePrefix accepts a CIDR or a bare address, which becomes a single-host prefix.
func parsePrefix(s string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
