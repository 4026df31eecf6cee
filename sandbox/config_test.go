package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	for _, name := range []string{"SANDBOX_BASE_URL", "SANDBOX_TIMEOUT", "SANDBOX_PROFILE", "SANDBOX_DISABLE_PROXY_DETECT"} {
		t.Setenv(name, "")
	}
}

func TestResolveConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Empty(t, cfg.Proxy)
	require.NotNil(t, cfg.AutoDetectProxy)
	assert.True(t, *cfg.AutoDetectProxy)
	assert.NotNil(t, cfg.Logger)
}

func TestResolveConfigFromFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SANDBOX_PROFILE", "file-only")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://file.example.com:9000", cfg.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.Timeout)
	assert.Equal(t, "http://127.0.0.1:3128", cfg.Proxy)
	assert.False(t, *cfg.AutoDetectProxy)
}

func TestResolveConfigEnvironmentOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SANDBOX_PROFILE", "file-only")
	t.Setenv("SANDBOX_BASE_URL", "http://env.example.com")
	t.Setenv("SANDBOX_TIMEOUT", "45s")
	t.Setenv("SANDBOX_DISABLE_PROXY_DETECT", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.com", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.True(t, *cfg.AutoDetectProxy)
}

func TestResolveConfigExplicitOverridesEnvironment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SANDBOX_PROFILE", "file-only")
	t.Setenv("SANDBOX_BASE_URL", "http://env.example.com")
	t.Setenv("SANDBOX_TIMEOUT", "45")
	t.Setenv("SANDBOX_DISABLE_PROXY_DETECT", "true")

	cfg, err := resolveConfig(&Config{
		BaseURL:         "http://explicit.example.com",
		Timeout:         time.Second,
		Proxy:           "http://10.0.0.1:8080",
		AutoDetectProxy: Bool(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://explicit.example.com", cfg.BaseURL)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, "http://10.0.0.1:8080", cfg.Proxy)
	assert.True(t, *cfg.AutoDetectProxy)
}

func TestResolveConfigDoesNotMutateInput(t *testing.T) {
	clearConfigEnv(t)
	in := &Config{}

	_, err := resolveConfig(in)
	require.NoError(t, err)
	assert.Empty(t, in.BaseURL)
	assert.Zero(t, in.Timeout)
	assert.Nil(t, in.AutoDetectProxy)
}

func TestResolveConfigDisableProxyDetect(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SANDBOX_DISABLE_PROXY_DETECT", "yes")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, *cfg.AutoDetectProxy)
}

func TestResolveConfigInvalidFileTimeout(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SANDBOX_PROFILE", "bad-timeout")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolveConfigInvalidEnvTimeoutFallsBack(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SANDBOX_TIMEOUT", "forever")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}
