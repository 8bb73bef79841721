package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name:    "uses defaults when nothing is set",
			envVars: map[string]string{},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "development", c.Environment)
				assert.Equal(t, "info", c.LogLevel)
				assert.Equal(t, 0.7, c.MinConfidence)
				assert.Equal(t, 0.6, c.MinDetection)
				assert.Equal(t, 0.6, c.MinTracking)
				assert.Equal(t, 0, c.CameraID)
				assert.Equal(t, "faceLandmark68.dat", c.ShapeModel)
			},
		},
		{
			name: "reads prefixed variables",
			envVars: map[string]string{
				"LANDMARKER_ENV":            "production",
				"LANDMARKER_CAMERA_ID":      "2",
				"LANDMARKER_MIN_CONFIDENCE": "0.9",
				"LANDMARKER_MODELS_DIR":     "/opt/models",
			},
			check: func(t *testing.T, c *Config) {
				assert.True(t, c.IsProduction())
				assert.Equal(t, 2, c.CameraID)
				assert.Equal(t, 0.9, c.MinConfidence)
				assert.Equal(t, "/opt/models", c.ModelsDir)
			},
		},
		{
			name:    "rejects confidence above one",
			envVars: map[string]string{"LANDMARKER_MIN_CONFIDENCE": "1.5"},
			wantErr: true,
		},
		{
			name:    "rejects negative camera",
			envVars: map[string]string{"LANDMARKER_CAMERA_ID": "-1"},
			wantErr: true,
		},
		{
			name:    "rejects non-integer camera",
			envVars: map[string]string{"LANDMARKER_CAMERA_ID": "front"},
			wantErr: true,
		},
		{
			name:    "rejects unknown log level",
			envVars: map[string]string{"LANDMARKER_LOG_LEVEL": "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfig_ModelPath(t *testing.T) {
	cfg := &Config{ModelsDir: "/models"}

	assert.Equal(t, filepath.Join("/models", "proto.txt"), cfg.ModelPath("proto.txt"))
	assert.Equal(t, "/elsewhere/w.caffemodel", cfg.ModelPath("/elsewhere/w.caffemodel"))
}

func TestConfig_FaceRecognizerDir(t *testing.T) {
	cfg := &Config{ModelsDir: "/models"}
	assert.Equal(t, "/models", cfg.FaceRecognizerDir())

	cfg.FaceRecDir = "/dlib"
	assert.Equal(t, "/dlib", cfg.FaceRecognizerDir())
}

func TestConfig_DatabasePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg := &Config{DataDir: dir}

	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "landmarker.db"), path)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(&Config{Environment: "production", LogLevel: "warn"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_WritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "landmarker.log")
	logger := NewLogger(&Config{Environment: "test", LogLevel: "info", LogFile: logFile})

	logger.Info("to file")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
