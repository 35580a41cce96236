package objectstore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvEndpoint  = "PIPECOMPILE_MINIO_ENDPOINT"
	EnvAccessKey = "PIPECOMPILE_MINIO_ACCESS_KEY"
	EnvSecretKey = "PIPECOMPILE_MINIO_SECRET_KEY"
	EnvRegion    = "PIPECOMPILE_MINIO_REGION"
	EnvUseSSL    = "PIPECOMPILE_MINIO_USE_SSL"
	EnvBucket    = "PIPECOMPILE_MINIO_BUCKET"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

func ConfigFromEnv() (Config, error) {
	useSSL := false
	if raw, ok := os.LookupEnv(EnvUseSSL); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("%s: invalid bool %q", EnvUseSSL, raw)
		}
		useSSL = v
	}
	cfg := Config{
		Endpoint:  envString(EnvEndpoint, "localhost:9000"),
		AccessKey: envString(EnvAccessKey, ""),
		SecretKey: envString(EnvSecretKey, ""),
		Region:    envString(EnvRegion, "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    envString(EnvBucket, "pipelines"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}
