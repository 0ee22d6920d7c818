package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	LogFormat       string
	LogLevel        string

	// RateLimitPerMinute bounds requests per operator. Zero disables it.
	RateLimitPerMinute int
}

// Database configures the relational store. An empty URL selects the
// in-memory backend.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrateOnStart  bool
}

// RedisConfig configures the shared price cache. An empty URL selects the
// in-process cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures regulator submissions and the audit stream. No brokers
// disables both.
type Kafka struct {
	Brokers         []string
	RegulatoryTopic string
	AuditTopic      string
	ClientID        string
	Partitions      int
	Replication     int
}

// Provider configures one spot price feed.
type Provider struct {
	Name          string
	Endpoint      string
	APIKey        string
	RatePerSecond float64
	DirectRates   bool
}

// Pricing configures the price resolver.
type Pricing struct {
	CacheTTL        time.Duration
	ProviderTimeout time.Duration
	BaseCurrency    string
	TablesFile      string
	Primary         Provider
	Backup          Provider
}

// Compliance configures the AML gate.
type Compliance struct {
	CashCeiling        decimal.Decimal
	AMLValidity        time.Duration
	ReportingThreshold decimal.Decimal
	ReportableMetals   []string
	HoldingDays        int
	HighValueDays      int
	HighValueThreshold decimal.Decimal
	WatchlistFile      string
	DocumentDir        string
	RegistryFile       string
}

// Fixing configures contract lifecycle defaults.
type Fixing struct {
	RenewalMonths  int
	NearExpiryDays int
	SweepSchedule  string
}

// Config is the complete process configuration.
type Config struct {
	Server     Server
	Database   Database
	Redis      RedisConfig
	Kafka      Kafka
	Pricing    Pricing
	Compliance Compliance
	Fixing     Fixing
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var p parser
	cfg := Config{
		Server: Server{
			Addr:            p.str("BULLION_ADDR", ":8080"),
			ShutdownTimeout: p.duration("BULLION_SHUTDOWN_TIMEOUT", 15*time.Second),
			LogFormat:       p.str("LOG_FORMAT", "json"),
			LogLevel:        p.str("LOG_LEVEL", "info"),

			RateLimitPerMinute: p.integer("BULLION_RATE_LIMIT_PER_MINUTE", 600),
		},
		Database: Database{
			URL:             p.str("DATABASE_URL", ""),
			MaxOpenConns:    p.integer("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    p.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			MigrateOnStart:  p.boolean("DATABASE_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:         p.list("KAFKA_BROKERS"),
			RegulatoryTopic: p.str("KAFKA_REGULATORY_TOPIC", "bullion.regulatory-submissions"),
			AuditTopic:      p.str("KAFKA_AUDIT_TOPIC", "bullion.audit"),
			ClientID:        p.str("KAFKA_CLIENT_ID", "bullion"),
			Partitions:      p.integer("KAFKA_TOPIC_PARTITIONS", 1),
			Replication:     p.integer("KAFKA_TOPIC_REPLICATION", 1),
		},
		Pricing: Pricing{
			CacheTTL:        time.Duration(p.integer("METAL_CACHE_MINUTES", 5)) * time.Minute,
			ProviderTimeout: p.duration("METAL_API_TIMEOUT", 10*time.Second),
			BaseCurrency:    p.str("METAL_BASE_CURRENCY", "EUR"),
			TablesFile:      p.str("PRICING_TABLES_FILE", ""),
			Primary: Provider{
				Name:          p.str("METAL_API_PRIMARY", "metalpriceapi"),
				Endpoint:      p.str("METAL_API_PRIMARY_URL", "https://api.metalpriceapi.com/v1/latest"),
				APIKey:        p.str("METAL_API_KEY", ""),
				RatePerSecond: p.float("METAL_API_RATE", 2),
			},
			Backup: Provider{
				Name:          p.str("METAL_API_BACKUP", "backup"),
				Endpoint:      p.str("METAL_API_BACKUP_URL", ""),
				APIKey:        p.str("METAL_API_BACKUP_KEY", ""),
				RatePerSecond: p.float("METAL_API_BACKUP_RATE", 1),
				DirectRates:   p.boolean("METAL_API_BACKUP_DIRECT", false),
			},
		},
		Compliance: Compliance{
			CashCeiling:        p.dec("AML_CASH_MAX", "2999.99"),
			AMLValidity:        time.Duration(p.integer("AML_VALIDITY_DAYS", 365)) * 24 * time.Hour,
			ReportingThreshold: p.dec("AML_REPORTING_THRESHOLD", "10000"),
			ReportableMetals:   p.listDefault("AML_REPORTABLE_METALS", []string{"GOLD"}),
			HoldingDays:        p.integer("HOLDING_DAYS_DEFAULT", 10),
			HighValueDays:      p.integer("HOLDING_DAYS_HIGH_VALUE", 30),
			HighValueThreshold: p.dec("HOLDING_HIGH_VALUE_THRESHOLD", "10000"),
			WatchlistFile:      p.str("WATCHLIST_FILE", ""),
			DocumentDir:        p.str("DOCUMENT_DIR", "storage/documents"),
			RegistryFile:       p.str("COMPANY_REGISTRY_FILE", ""),
		},
		Fixing: Fixing{
			RenewalMonths:  p.integer("FIXING_RENEWAL_MONTHS", 3),
			NearExpiryDays: p.integer("FIXING_NEAR_EXPIRY_DAYS", 7),
			SweepSchedule:  p.str("FIXING_SWEEP_SCHEDULE", "@every 1h"),
		},
	}
	if len(p.errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(p.errs, "; "))
	}
	return cfg, nil
}

// parser collects every malformed variable so startup reports them together.
type parser struct {
	errs []string
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func (p *parser) dec(key, def string) decimal.Decimal {
	v := p.str(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return decimal.RequireFromString(def)
	}
	return d
}

func (p *parser) list(key string) []string {
	return p.listDefault(key, nil)
}

func (p *parser) listDefault(key string, def []string) []string {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
