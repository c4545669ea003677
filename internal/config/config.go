// Package config loads genforge's runtime configuration from
// environment variables, plus a YAML loader (LoadStaticTables) for a copy
// of the static pricing and model-compatibility tables. Grounded on azcopy's
// common/environment.go EnvironmentVariable accessor pattern, generalized
// from azcopy's single flat list of variables into a struct assembled
// field-by-field the same way.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvVar mirrors common.EnvironmentVariable: a name, a default, and a
// description for self-documenting `--help`-style output.
type EnvVar struct {
	Name         string
	DefaultValue string
	Description  string
}

func getEnv(v EnvVar) string {
	if val := os.Getenv(v.Name); val != "" {
		return val
	}
	return v.DefaultValue
}

var (
	DBHost = EnvVar{"GENFORGE_DB_HOST", "localhost", "Postgres host"}
	DBPort = EnvVar{"GENFORGE_DB_PORT", "5432", "Postgres port"}
	DBUser = EnvVar{"GENFORGE_DB_USER", "genforge", "Postgres user"}
	DBPassword = EnvVar{"GENFORGE_DB_PASSWORD", "", "Postgres password"}
	DBName = EnvVar{"GENFORGE_DB_NAME", "genforge", "Postgres database name"}
	DBSSLMode = EnvVar{"GENFORGE_DB_SSLMODE", "disable", "Postgres sslmode"}

	RedisAddr = EnvVar{"GENFORGE_REDIS_ADDR", "", "Redis address for shared rate-limit state (optional)"}

	DataDir = EnvVar{"GENFORGE_DATA_DIR", "./data", "Root directory for checkpoints, cooldowns, flow logs, and locks"}
	LogLevel = EnvVar{"GENFORGE_LOG_LEVEL", "info", "Minimum log level (debug, info, warning, error)"}

	MaxConcurrency = EnvVar{"GENFORGE_MAX_CONCURRENCY", "10", "Parsed into Config.MaxConcurrency; the queue does not read it and bounds items per job by the tier table"}
	ClaimLeaseSeconds = EnvVar{"GENFORGE_CLAIM_LEASE_SECONDS", "300", "Legacy worker-loop claim lease duration"}

	ObjectCacheBackend = EnvVar{"GENFORGE_OBJECT_CACHE_BACKEND", "azblob", "azblob or s3"}
	AzureBlobAccountURL = EnvVar{"GENFORGE_AZURE_BLOB_ACCOUNT_URL", "", "Azure Blob account URL"}
	AzureBlobContainer = EnvVar{"GENFORGE_AZURE_BLOB_CONTAINER", "genforge-cache", "Azure Blob container"}
	S3Endpoint = EnvVar{"GENFORGE_S3_ENDPOINT", "", "S3-compatible endpoint (e.g. Cloudflare R2)"}
	S3Bucket = EnvVar{"GENFORGE_S3_BUCKET", "genforge-cache", "S3-compatible bucket"}
	S3AccessKey = EnvVar{"GENFORGE_S3_ACCESS_KEY", "", "S3-compatible access key"}
	S3SecretKey = EnvVar{"GENFORGE_S3_SECRET_KEY", "", "S3-compatible secret key"}
)

// TierLimits mirrors batch_queue.py's hard-coded
// {"free": 1, "starter": 2, "pro": 5, "agency": 10} concurrency table.
var TierLimits = map[string]int{
	"free":    1,
	"starter": 2,
	"pro":     5,
	"agency":  10,
}

// Config is the fully-resolved runtime configuration, assembled once at
// process start (the equivalent of azcopy's concurrencySettings +
// credential config assembled in cmd/root.go's PersistentPreRunE).
type Config struct {
	DBHost, DBUser, DBPassword, DBName, DBSSLMode string
	DBPort                                        int

	RedisAddr string

	DataDir  string
	LogLevel string

	MaxConcurrency    int
	ClaimLeaseSeconds time.Duration

	ObjectCacheBackend  string
	AzureBlobAccountURL string
	AzureBlobContainer  string
	S3Endpoint          string
	S3Bucket            string
	S3AccessKey         string
	S3SecretKey         string
}

// Load reads every environment variable into a Config, mirroring
// azcopy's pattern of reading each EnvironmentVariable individually
// rather than deserializing a single blob.
func Load() (Config, error) {
	port, err := strconv.Atoi(getEnv(DBPort))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", DBPort.Name, err)
	}
	maxConcurrency, err := strconv.Atoi(getEnv(MaxConcurrency))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", MaxConcurrency.Name, err)
	}
	leaseSeconds, err := strconv.Atoi(getEnv(ClaimLeaseSeconds))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", ClaimLeaseSeconds.Name, err)
	}

	return Config{
		DBHost:     getEnv(DBHost),
		DBPort:     port,
		DBUser:     getEnv(DBUser),
		DBPassword: getEnv(DBPassword),
		DBName:     getEnv(DBName),
		DBSSLMode:  getEnv(DBSSLMode),

		RedisAddr: getEnv(RedisAddr),

		DataDir:  getEnv(DataDir),
		LogLevel: getEnv(LogLevel),

		MaxConcurrency:    maxConcurrency,
		ClaimLeaseSeconds: time.Duration(leaseSeconds) * time.Second,

		ObjectCacheBackend:  getEnv(ObjectCacheBackend),
		AzureBlobAccountURL: getEnv(AzureBlobAccountURL),
		AzureBlobContainer:  getEnv(AzureBlobContainer),
		S3Endpoint:          getEnv(S3Endpoint),
		S3Bucket:            getEnv(S3Bucket),
		S3AccessKey:         getEnv(S3AccessKey),
		S3SecretKey:         getEnv(S3SecretKey),
	}, nil
}
