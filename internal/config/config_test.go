package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dispute-assistant/internal/classification"
	"github.com/Veraticus/dispute-assistant/internal/common"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	s, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "data/disputes.csv", s.DisputesPath)
	assert.Equal(t, "output", s.OutputDir)
	assert.Equal(t, "openai", s.LLM.Provider)
	assert.Equal(t, 20*time.Second, s.LLM.Timeout)
	assert.Equal(t, 1, s.LLM.MaxRetries)
	assert.Equal(t, 2*time.Hour, s.Dedup.TimeWindow)
	assert.True(t, s.Dedup.AmountTolerance.IsZero())
	assert.InDelta(t, 0.75, s.Dedup.ScoreThreshold, 1e-9)
	assert.Equal(t, classification.DefaultOrder(), s.RulesOrder)
	assert.True(t, s.EscalationThreshold.IsZero())
	assert.Equal(t, 1, s.Workers)
	assert.False(t, s.ModelEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	v := newViper()
	v.Set("llm.provider", "Anthropic")
	v.Set("llm.api_key", "sk-test")
	v.Set("llm.timeout", "5s")
	v.Set("dedup.amount_tolerance", "1.50")
	v.Set("resolution.escalation_threshold", "7500")
	v.Set("pipeline.workers", 4)
	v.Set("rules.order", []string{"fraud", "duplicate"})

	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", s.LLM.Provider)
	assert.True(t, s.ModelEnabled())
	assert.Equal(t, 5*time.Second, s.LLMConfig().Timeout)
	assert.Equal(t, "1.5", s.DedupConfig().AmountTolerance.String())
	assert.Equal(t, "7500", s.ResolutionConfig().EscalationThreshold.String())
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, []string{"fraud", "duplicate"}, s.RulesOrder)
}

func TestLoad_ProviderKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	v := newViper()
	v.Set("llm.provider", "anthropic")

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.LLMConfig().APIKey)
}

func TestLoad_EnvPrefix(t *testing.T) {
	t.Setenv("DISPUTE_PIPELINE_WORKERS", "3")
	t.Setenv("DISPUTE_OUTPUT_DIR", "/tmp/out")

	v := newViper()
	BindEnv(v)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, "/tmp/out", s.OutputDir)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		value any
		name  string
		key   string
	}{
		{name: "unknown provider", key: "llm.provider", value: "gemini"},
		{name: "zero workers", key: "pipeline.workers", value: 0},
		{name: "zero timeout", key: "llm.timeout", value: "0s"},
		{name: "score threshold above one", key: "dedup.score_threshold", value: 1.5},
		{name: "negative tolerance", key: "dedup.amount_tolerance", value: "-1"},
		{name: "tolerance not a number", key: "dedup.amount_tolerance", value: "abc"},
		{name: "negative escalation", key: "resolution.escalation_threshold", value: "-10"},
		{name: "empty disputes path", key: "data.disputes", value: ""},
		{name: "bad base url", key: "llm.base_url", value: "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISPUTE_TEST_DOTENV_KEY=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("DISPUTE_TEST_DOTENV_KEY") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("DISPUTE_TEST_DOTENV_KEY"))
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISPUTE_TEST_EXISTING=file\n"), 0o600))
	t.Setenv("DISPUTE_TEST_EXISTING", "process")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "process", os.Getenv("DISPUTE_TEST_EXISTING"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("DISPUTE_TEST_DIR", "/data")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/runs.db", filepath.Join(home, "runs.db")},
		{"$DISPUTE_TEST_DIR/in.csv", "/data/in.csv"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
