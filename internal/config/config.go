package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/your-org/crowdsense/internal/models"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Capture  CaptureConfig  `yaml:"capture"`
	Vision   VisionConfig   `yaml:"vision"`
	Tracking TrackingConfig `yaml:"tracking"`
	Ads      AdsConfig      `yaml:"ads"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file
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

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	AdsPrefix string `yaml:"ads_prefix"`
}

type CaptureConfig struct {
	Type              models.CaptureType `yaml:"type"`
	URL               string             `yaml:"url"`
	FPS               int                `yaml:"fps"`
	Width             int                `yaml:"width"`
	ReconnectAttempts int                `yaml:"reconnect_attempts"`
}

type VisionConfig struct {
	ModelsDir       string  `yaml:"models_dir"`
	PersonThreshold float64 `yaml:"person_threshold"`
	GenderThreshold float64 `yaml:"gender_threshold"`
	FaceThreshold   float64 `yaml:"face_threshold"`
	NMSThreshold    float64 `yaml:"nms_threshold"`
	DetectEvery     int     `yaml:"detect_every"`
	MinFaceSize     int     `yaml:"min_face_size"`
	FacePadding     float64 `yaml:"face_padding"`
	UseGPU          bool    `yaml:"use_gpu"`
}

type TrackingConfig struct {
	MaxDisappeared int     `yaml:"max_disappeared"`
	MaxDistance    float64 `yaml:"max_distance"`
	ConfirmHits    int     `yaml:"confirm_hits"`
	LabelHistory   int     `yaml:"label_history"`
}

type AdsConfig struct {
	Dir             string        `yaml:"dir"`
	DisplayDuration time.Duration `yaml:"display_duration"`
	TriggerDelay    time.Duration `yaml:"trigger_delay"`
	HistorySize     int           `yaml:"history_size"`
}

type PipelineConfig struct {
	ErrorBackoff     time.Duration `yaml:"error_backoff"`
	DetectionHistory int           `yaml:"detection_history"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// An empty path skips the file and uses env and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want postgres, sqlite or memory", c.Database.Driver))
	}
	if !c.Capture.Type.Valid() {
		errs = append(errs, fmt.Errorf("capture.type %q is not supported", c.Capture.Type))
	}
	for name, v := range map[string]float64{
		"vision.person_threshold": c.Vision.PersonThreshold,
		"vision.gender_threshold": c.Vision.GenderThreshold,
		"vision.face_threshold":   c.Vision.FaceThreshold,
		"vision.nms_threshold":    c.Vision.NMSThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f: must be within [0,1]", name, v))
		}
	}
	if c.Vision.FacePadding < 0 {
		errs = append(errs, errors.New("vision.face_padding must not be negative"))
	}
	if c.Vision.DetectEvery < 1 {
		errs = append(errs, errors.New("vision.detect_every must be positive"))
	}
	if c.Capture.FPS < 1 || c.Capture.Width < 1 {
		errs = append(errs, errors.New("capture.fps and capture.width must be positive"))
	}
	if c.Tracking.MaxDistance <= 0 || c.Tracking.LabelHistory < 1 || c.Tracking.ConfirmHits < 1 {
		errs = append(errs, errors.New("tracking sizes must be positive"))
	}
	if c.Ads.DisplayDuration <= 0 || c.Ads.TriggerDelay < 0 || c.Ads.HistorySize < 1 {
		errs = append(errs, errors.New("ads durations and history_size must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/crowdsense.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "crowdsense"
	}
	if cfg.MinIO.AdsPrefix == "" {
		cfg.MinIO.AdsPrefix = "ads/"
	}
	if cfg.Capture.Type == "" {
		cfg.Capture.Type = models.CaptureDevice
	}
	if cfg.Capture.Type == models.CaptureDevice && cfg.Capture.URL == "" {
		cfg.Capture.URL = "/dev/video0"
	}
	if cfg.Capture.FPS == 0 {
		cfg.Capture.FPS = 15
	}
	if cfg.Capture.Width == 0 {
		cfg.Capture.Width = 1280
	}
	if cfg.Capture.ReconnectAttempts == 0 {
		cfg.Capture.ReconnectAttempts = 3
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.PersonThreshold == 0 {
		cfg.Vision.PersonThreshold = 0.75
	}
	if cfg.Vision.GenderThreshold == 0 {
		cfg.Vision.GenderThreshold = 0.75
	}
	if cfg.Vision.FaceThreshold == 0 {
		cfg.Vision.FaceThreshold = 0.60
	}
	if cfg.Vision.NMSThreshold == 0 {
		cfg.Vision.NMSThreshold = 0.4
	}
	if cfg.Vision.DetectEvery == 0 {
		cfg.Vision.DetectEvery = 2
	}
	if cfg.Vision.MinFaceSize == 0 {
		cfg.Vision.MinFaceSize = 20
	}
	if cfg.Vision.FacePadding == 0 {
		cfg.Vision.FacePadding = 0.20
	}
	if cfg.Tracking.MaxDisappeared == 0 {
		cfg.Tracking.MaxDisappeared = 50
	}
	if cfg.Tracking.MaxDistance == 0 {
		cfg.Tracking.MaxDistance = 150
	}
	if cfg.Tracking.ConfirmHits == 0 {
		cfg.Tracking.ConfirmHits = 10
	}
	if cfg.Tracking.LabelHistory == 0 {
		cfg.Tracking.LabelHistory = 20
	}
	if cfg.Ads.Dir == "" {
		cfg.Ads.Dir = "static/ads"
	}
	if cfg.Ads.DisplayDuration == 0 {
		cfg.Ads.DisplayDuration = 15 * time.Second
	}
	if cfg.Ads.TriggerDelay == 0 {
		cfg.Ads.TriggerDelay = 2 * time.Second
	}
	if cfg.Ads.HistorySize == 0 {
		cfg.Ads.HistorySize = 100
	}
	if cfg.Pipeline.ErrorBackoff == 0 {
		cfg.Pipeline.ErrorBackoff = time.Second
	}
	if cfg.Pipeline.DetectionHistory == 0 {
		cfg.Pipeline.DetectionHistory = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("CS_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("CS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("CS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("CS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("CS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("CS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("CS_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("CS_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("CS_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("CS_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("CS_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("CS_CAPTURE_TYPE"); v != "" {
		cfg.Capture.Type = models.CaptureType(v)
	}
	if v := os.Getenv("CS_CAPTURE_URL"); v != "" {
		cfg.Capture.URL = v
	}
	if v := os.Getenv("CS_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("CS_DETECT_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.DetectEvery = n
		}
	}
	if v := os.Getenv("CS_USE_GPU"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Vision.UseGPU = b
		}
	}
	if v := os.Getenv("CS_ADS_DIR"); v != "" {
		cfg.Ads.Dir = v
	}
	if v := os.Getenv("CS_AD_DISPLAY_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ads.DisplayDuration = d
		}
	}
	if v := os.Getenv("CS_AD_TRIGGER_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ads.TriggerDelay = d
		}
	}
	if v := os.Getenv("CS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
