// Package config loads landmarker settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds model locations and runtime defaults.
type Config struct {
	Environment string `envconfig:"ENV" default:"development" validate:"oneof=development production test"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFile     string `envconfig:"LOG_FILE"`

	// Model assets
	ModelsDir    string `envconfig:"MODELS_DIR" default:"resources/models"`
	CaffeProto   string `envconfig:"CAFFE_PROTO" default:"prototxt.txt"`
	CaffeModel   string `envconfig:"CAFFE_MODEL" default:"res10_300x300_ssd_iter_140000.caffemodel"`
	ShapeModel   string `envconfig:"SHAPE_MODEL" default:"faceLandmark68.dat"`
	FaceRecDir   string `envconfig:"FACE_REC_DIR"`
	BridgeScript string `envconfig:"BRIDGE_SCRIPT"`
	BridgePython string `envconfig:"BRIDGE_PYTHON"`

	// Detection
	MinConfidence float64 `envconfig:"MIN_CONFIDENCE" default:"0.7" validate:"gte=0,lte=1"`

	// Video
	CameraID     int     `envconfig:"CAMERA_ID" default:"0" validate:"gte=0"`
	MinDetection float64 `envconfig:"MIN_DETECTION" default:"0.6" validate:"gte=0,lte=1"`
	MinTracking  float64 `envconfig:"MIN_TRACKING" default:"0.6" validate:"gte=0,lte=1"`

	// Recording
	DataDir string `envconfig:"DATA_DIR"`
}

// Load reads an optional .env file, then the LANDMARKER_* environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("landmarker", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// ModelPath resolves a model file name against ModelsDir. Absolute names are returned unchanged.
func (c *Config) ModelPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ModelsDir, name)
}

// DatabasePath returns the sqlite file used for recorded sessions, creating its directory.
// An empty DataDir defaults to ~/.landmarker.
func (c *Config) DatabasePath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".landmarker")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	return filepath.Join(dir, "landmarker.db"), nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// FaceRecognizerDir is the directory holding the dlib models used by the face finder.
func (c *Config) FaceRecognizerDir() string {
	if c.FaceRecDir != "" {
		return c.FaceRecDir
	}
	return c.ModelsDir
}
