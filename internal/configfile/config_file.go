package configfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mbt1909432/artifact-sandbox/internal/env"
)

type profileConfig struct {
	BaseURL         string      `toml:"base_url"`
	Timeout         interface{} `toml:"timeout"`
	Proxy           string      `toml:"proxy"`
	AutoDetectProxy *bool       `toml:"auto_detect_proxy"`
}

var (
	profileConfigs      map[string]*profileConfig
	profileConfigsError error
	profileConfigsOnce  sync.Once
	ErrInvalidTimeout   = errors.New("invalid timeout")
)

func BaseURLFromConfigFile() (string, error) {
	profile, err := getProfile()
	if err != nil || profile == nil {
		return "", err
	}
	return strings.TrimSpace(profile.BaseURL), nil
}

// TimeoutFromConfigFile 读取 timeout，支持整数或小数秒，以及 "30s" 形式的字符串。
func TimeoutFromConfigFile() (time.Duration, error) {
	profile, err := getProfile()
	if err != nil || profile == nil || profile.Timeout == nil {
		return 0, err
	}
	var d time.Duration
	switch t := profile.Timeout.(type) {
	case int64:
		d = time.Duration(t) * time.Second
	case float64:
		d = time.Duration(t * float64(time.Second))
	case string:
		if d, err = time.ParseDuration(t); err != nil {
			seconds, pErr := strconv.ParseFloat(t, 64)
			if pErr != nil {
				return 0, ErrInvalidTimeout
			}
			d = time.Duration(seconds * float64(time.Second))
		}
	default:
		return 0, ErrInvalidTimeout
	}
	if d <= 0 {
		return 0, ErrInvalidTimeout
	}
	return d, nil
}

func ProxyFromConfigFile() (string, error) {
	profile, err := getProfile()
	if err != nil || profile == nil {
		return "", err
	}
	return strings.TrimSpace(profile.Proxy), nil
}

// AutoDetectProxyFromConfigFile 第二个返回值表示配置文件中是否显式设置了该项。
func AutoDetectProxyFromConfigFile() (bool, bool, error) {
	profile, err := getProfile()
	if err != nil || profile == nil || profile.AutoDetectProxy == nil {
		return false, false, err
	}
	return *profile.AutoDetectProxy, true, nil
}

func getProfile() (*profileConfig, error) {
	if err := load(); err != nil {
		return nil, err
	}
	profileName := env.ProfileFromEnvironment()
	if profileName == "" {
		profileName = "default"
	}
	profile, ok := profileConfigs[profileName]
	if !ok || profile == nil {
		return nil, nil
	}
	return profile, nil
}

func load() error {
	profileConfigsOnce.Do(func() {
		profileConfigsError = _load()
	})
	return profileConfigsError
}

func _load() error {
	configFilePath := env.ConfigFileFromEnvironment()
	if configFilePath == "" {
		configFilePath = getDefaultConfigFilePath()
	}
	_, err := toml.DecodeFile(configFilePath, &profileConfigs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func getDefaultConfigFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}
	return filepath.Join(homeDir, ".sandbox", "config.toml")
}
