package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Environment: "development",
			DataPath:    "/some/path",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Campus: CampusConfig{
			CheckinReward:   10,
			RestoreCost:     50,
			DefaultTeamSize: 5,
			MinTeamSize:     2,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", false}, // cloudinary credentials missing
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_ProductionWithCloudinary(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "production"
	cfg.Integrations.CloudinaryCloudName = "campus"

	assert.NoError(t, cfg.Validate())
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"INFO", true},
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_PointEconomy(t *testing.T) {
	cfg := validConfig()
	cfg.Campus.RestoreCost = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Campus.CheckinReward = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Campus.MinTeamSize = 6
	assert.Error(t, cfg.Validate())
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.App.DataPath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data path")
}

func TestExpandDataPath_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "EcoCampus", "data"), cfg.App.DataPath)
}

func TestExpandDataPath_TildeExpansion(t *testing.T) {
	cfg := &Config{App: AppConfig{DataPath: "~/campus"}}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "campus"), cfg.App.DataPath)
}

func TestExpandDataPath_RelativePath(t *testing.T) {
	cfg := &Config{App: AppConfig{DataPath: "relative/data"}}

	err := cfg.expandDataPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.App.DataPath))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("ECO_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "ECO_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "ECO_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "ECO_TEST_MISSING", "default"))
}

func TestGetIntConfigValue(t *testing.T) {
	t.Setenv("ECO_TEST_INT", "42")
	assert.Equal(t, 42, getIntConfigValue("", "ECO_TEST_INT", 7))
	assert.Equal(t, 7, getIntConfigValue("", "ECO_TEST_INT_MISSING", 7))

	t.Setenv("ECO_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getIntConfigValue("", "ECO_TEST_INT", 7))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}

func TestLoadLevels_Default(t *testing.T) {
	levels, err := LoadLevels("")
	require.NoError(t, err)
	require.NotEmpty(t, levels)

	assert.Equal(t, 0, levels[0].MinPoints)
	assert.Zero(t, levels[len(levels)-1].NextMin, "top level has no ceiling")
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i].MinPoints, levels[i-1].MinPoints)
	}
}

func TestLoadLevels_FileOverridesAndSorts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.yaml")
	content := `
- name: Pro
  min_points: 100
- name: Rookie
  min_points: 0
  next_min: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	levels, err := LoadLevels(path)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "Rookie", levels[0].Name)
	assert.Equal(t, "Pro", levels[1].Name)
}

func TestLoadLevels_MustStartAtZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: Pro\n  min_points: 10\n"), 0o600))

	_, err := LoadLevels(path)
	assert.Error(t, err)
}

func TestLoadLevels_MissingFile(t *testing.T) {
	_, err := LoadLevels(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
