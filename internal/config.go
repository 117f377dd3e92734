package internal

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"public-feed/delivery"
	"public-feed/media"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"

	MaxWindow = 1000

	DefaultDenyList = "spam,hack,phishing,bot"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL,required=true"`
	Host        string `env:"HOST,default=localhost"`
	Port        int    `env:"PORT,default=8080"`
	MetricsPort int    `env:"METRICS_PORT,default=9090"`

	StoreBackend   string `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/feed"`
	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB,default=0"`
	RedisNamespace string `env:"REDIS_NAMESPACE,default=feed"`

	MaxAuthorLength      int   `env:"MAX_AUTHOR_LENGTH,default=50"`
	MaxBodyLength        int   `env:"MAX_BODY_LENGTH,default=500"`
	MaxEncodedMediaBytes int   `env:"MAX_ENCODED_MEDIA_BYTES,default=2097152"`
	MaxRawMediaBytes     int   `env:"MAX_RAW_MEDIA_BYTES,default=0"`
	MaxMediaWidth        int   `env:"MAX_MEDIA_WIDTH,default=800"`
	MediaQuality         int   `env:"MEDIA_QUALITY,default=70"`
	ReducedMediaWidth    int   `env:"REDUCED_MEDIA_WIDTH,default=600"`
	ReducedMediaQuality  int   `env:"REDUCED_MEDIA_QUALITY,default=50"`
	CompressionWorkers   int64 `env:"COMPRESSION_WORKERS,default=4"`
	MaxRequestBytes      int   `env:"MAX_REQUEST_BYTES,default=8388608"`

	MaxMessages int `env:"MAX_MESSAGES,default=100"`

	// Unset means DefaultDenyList, an empty value disables the inline list.
	DenyList               *string       `env:"DENY_LIST"`
	DenyListPath           string        `env:"DENY_LIST_PATH"`
	DenyListReloadInterval time.Duration `env:"DENY_LIST_RELOAD_INTERVAL,default=30s"`
	// Folds leet speak and strips spaces and punctuation before matching. Off by
	// default: it also matches across word boundaries ("Rob ottoman" has "bot").
	ModerationNormalize bool `env:"MODERATION_NORMALIZE,default=false"`

	PersistMaxAttempts int           `env:"PERSIST_MAX_ATTEMPTS,default=3"`
	PersistBackoffBase time.Duration `env:"PERSIST_BACKOFF_BASE,default=1s"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	SubmitRate  float64 `env:"SUBMIT_RATE,default=5"`
	SubmitBurst int     `env:"SUBMIT_BURST,default=10"`

	// Admin calls (Sweep, Delete) are disabled when empty.
	AdminSecret string `env:"ADMIN_SECRET"`
}

// Validate reports every inconsistent value at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.StoreBackend == BackendBadger || c.StoreBackend == BackendRedis,
		"STORE_BACKEND must be %q or %q, got %q", BackendBadger, BackendRedis, c.StoreBackend)
	check(c.StoreBackend != BackendBadger || c.BadgerFilepath != "", "BADGER_FILEPATH is required with the badger backend")
	check(c.StoreBackend != BackendRedis || c.RedisAddr != "", "REDIS_ADDR is required with the redis backend")
	check(c.Port > 0, "PORT must be positive, got %d", c.Port)
	check(c.MaxMessages >= 1 && c.MaxMessages <= MaxWindow, "MAX_MESSAGES must be within 1..%d, got %d", MaxWindow, c.MaxMessages)
	check(c.MaxAuthorLength > 0, "MAX_AUTHOR_LENGTH must be positive, got %d", c.MaxAuthorLength)
	check(c.MaxBodyLength > 0, "MAX_BODY_LENGTH must be positive, got %d", c.MaxBodyLength)
	check(c.MaxEncodedMediaBytes > 0, "MAX_ENCODED_MEDIA_BYTES must be positive, got %d", c.MaxEncodedMediaBytes)
	check(c.MaxRawMediaBytes == 0 || c.MaxRawMediaBytes >= c.MaxEncodedMediaBytes,
		"MAX_RAW_MEDIA_BYTES must be at least MAX_ENCODED_MEDIA_BYTES, got %d", c.MaxRawMediaBytes)
	check(c.MaxRequestBytes > c.rawCeiling(), "MAX_REQUEST_BYTES must exceed the raw media ceiling %d, got %d", c.rawCeiling(), c.MaxRequestBytes)
	check(c.CompressionWorkers >= 1, "COMPRESSION_WORKERS must be at least 1, got %d", c.CompressionWorkers)
	check(c.PersistMaxAttempts >= 1, "PERSIST_MAX_ATTEMPTS must be at least 1, got %d", c.PersistMaxAttempts)
	check(c.PersistBackoffBase >= 0, "PERSIST_BACKOFF_BASE must not be negative, got %s", c.PersistBackoffBase)
	check(c.SweepInterval > 0, "SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	check(c.DenyListPath == "" || c.DenyListReloadInterval > 0, "DENY_LIST_RELOAD_INTERVAL must be positive, got %s", c.DenyListReloadInterval)
	check(c.SubmitRate > 0 && c.SubmitBurst >= 1, "SUBMIT_RATE and SUBMIT_BURST must be positive")
	if _, err := media.NewCompressor(c.MediaConstraints()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) rawCeiling() int {
	if c.MaxRawMediaBytes > 0 {
		return c.MaxRawMediaBytes
	}
	return 2 * c.MaxEncodedMediaBytes
}

func (c Config) MediaConstraints() media.Constraints {
	return media.Constraints{
		MaxEncodedBytes: c.MaxEncodedMediaBytes,
		MaxRawBytes:     c.MaxRawMediaBytes,
		Ladder: []media.Step{
			{MaxWidth: c.MaxMediaWidth, Quality: c.MediaQuality},
			{MaxWidth: c.ReducedMediaWidth, Quality: c.ReducedMediaQuality},
		},
	}
}

func (c Config) Delivery() delivery.Config {
	return delivery.Config{
		Retry:            delivery.RetryPolicy{MaxAttempts: c.PersistMaxAttempts, BaseDelay: c.PersistBackoffBase},
		CompressionSlots: c.CompressionWorkers,
	}
}

// DenyListTerms merges DENY_LIST with the DENY_LIST_PATH file when set.
func (c Config) DenyListTerms() ([]string, error) {
	terms := SplitTerms(lo.FromPtrOr(c.DenyList, DefaultDenyList))
	if c.DenyListPath == "" {
		return terms, nil
	}
	fromFile, err := LoadDenyList(c.DenyListPath)
	if err != nil {
		return nil, err
	}
	return lo.Uniq(append(terms, fromFile...)), nil
}

func SplitTerms(list string) []string {
	return lo.Compact(lo.Map(strings.Split(list, ","), func(t string, _ int) string {
		return strings.TrimSpace(t)
	}))
}

type denyListFile struct {
	Terms []string `yaml:"terms"`
}

// LoadDenyList reads a yaml document of the form `terms: [a, b]`.
func LoadDenyList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deny-list %s: %w", path, err)
	}
	var file denyListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse deny-list %s: %w", path, err)
	}
	return lo.Compact(lo.Map(file.Terms, func(t string, _ int) string { return strings.TrimSpace(t) })), nil
}
