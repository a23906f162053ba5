package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type StorageConfig struct {
	DataRoot   string `yaml:"data_root"`
	ScratchDir string `yaml:"scratch_dir"` // defaults to <data_root>/.scratch
}

type RecognitionConfig struct {
	Mode                string        `yaml:"mode"`
	ServiceURL          string        `yaml:"service_url"`
	DetectorBackend     string        `yaml:"detector_backend"`
	RecognitionModel    string        `yaml:"recognition_model"`
	DistanceMetric      string        `yaml:"distance_metric"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	MaxImageDimension   int           `yaml:"max_image_dimension"`
	MatchTimeout        time.Duration `yaml:"match_timeout"`
	DefaultKind         string        `yaml:"default_kind"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Enabled reports whether the audit database is configured.
func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

type NATSConfig struct {
	URL string `yaml:"url"`
}

func (n NATSConfig) Enabled() bool { return n.URL != "" }

type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	Bucket          string `yaml:"bucket"`
	UseSSL          bool   `yaml:"use_ssl"`
	SourceRetention int    `yaml:"source_retention"` // archived source images kept per group; 0 keeps all
}

func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable overrides.
// An empty path skips the file and yields defaults plus environment.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes YAML config data, then applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := setDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Recognition.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Storage.DataRoot == "" {
		cfg.Storage.DataRoot = "data"
	}
	if cfg.Storage.ScratchDir == "" {
		cfg.Storage.ScratchDir = filepath.Join(cfg.Storage.DataRoot, ".scratch")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "faceid"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	r := &cfg.Recognition
	if r.Mode == "" {
		r.Mode = "balanced"
	}
	preset, ok := presets[r.Mode]
	if !ok {
		return fmt.Errorf("unknown performance mode %q (valid: %v)", r.Mode, Modes())
	}
	if r.DetectorBackend == "" {
		r.DetectorBackend = preset.DetectorBackend
	}
	if r.RecognitionModel == "" {
		r.RecognitionModel = preset.RecognitionModel
	}
	if r.ConfidenceThreshold == 0 {
		r.ConfidenceThreshold = preset.ConfidenceThreshold
	}
	if r.DistanceMetric == "" {
		r.DistanceMetric = "cosine"
	}
	if r.MaxImageDimension == 0 {
		r.MaxImageDimension = 1280
	}
	if r.MatchTimeout == 0 {
		r.MatchTimeout = 20 * time.Second
	}
	if r.DefaultKind == "" {
		r.DefaultKind = "temporary"
	}
	if r.ServiceURL == "" {
		r.ServiceURL = "http://localhost:5005"
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEID_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEID_DATA_ROOT"); v != "" {
		cfg.Storage.DataRoot = v
	}
	if v := os.Getenv("FACEID_SCRATCH_DIR"); v != "" {
		cfg.Storage.ScratchDir = v
	}
	if v := os.Getenv("FACEID_MODE"); v != "" {
		cfg.Recognition.Mode = v
	}
	if v := os.Getenv("FACEID_RECOGNIZER_URL"); v != "" {
		cfg.Recognition.ServiceURL = v
	}
	if v := os.Getenv("FACEID_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("FACEID_MATCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Recognition.MatchTimeout = d
		}
	}
	if v := os.Getenv("FACEID_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEID_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACEID_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACEID_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACEID_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEID_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACEID_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACEID_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACEID_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEID_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FACEID_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Modes lists the performance presets in a stable order.
func Modes() []string {
	modes := make([]string, 0, len(presets))
	for m := range presets {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}
