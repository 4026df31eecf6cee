package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	environmentVariableNameSandboxBaseURL            = "SANDBOX_BASE_URL"
	environmentVariableNameSandboxTimeout            = "SANDBOX_TIMEOUT"
	environmentVariableNameSandboxConfigFile         = "SANDBOX_CONFIG_FILE"
	environmentVariableNameSandboxProfile            = "SANDBOX_PROFILE"
	environmentVariableNameDisableSandboxProxyDetect = "SANDBOX_DISABLE_PROXY_DETECT"
	environmentVariableNameHTTPProxy                 = "HTTP_PROXY"
	environmentVariableNameHTTPSProxy                = "HTTPS_PROXY"
)

func BaseURLFromEnvironment() string {
	return strings.TrimSpace(os.Getenv(environmentVariableNameSandboxBaseURL))
}

// TimeoutFromEnvironment 解析 SANDBOX_TIMEOUT，支持 Go duration 格式（如 "45s"）或整数秒。
// 第二个返回值表示是否设置了合法的值。
func TimeoutFromEnvironment() (time.Duration, bool) {
	value := strings.TrimSpace(os.Getenv(environmentVariableNameSandboxTimeout))
	if value == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d, true
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second)), true
	}
	return 0, false
}

func ConfigFileFromEnvironment() string {
	return os.Getenv(environmentVariableNameSandboxConfigFile)
}

func ProfileFromEnvironment() string {
	return os.Getenv(environmentVariableNameSandboxProfile)
}

func DisableProxyDetectFromEnvironment() (bool, bool) {
	value := strings.ToLower(os.Getenv(environmentVariableNameDisableSandboxProxyDetect))
	if value == "" {
		return false, false
	}
	return value == "true" || value == "yes" || value == "y" || value == "1", true
}

// ProxyFromEnvironment 返回 HTTP(S)_PROXY 中配置的代理地址，大写变量优先，HTTPS 优先于 HTTP。
func ProxyFromEnvironment() string {
	for _, name := range []string{
		environmentVariableNameHTTPSProxy,
		strings.ToLower(environmentVariableNameHTTPSProxy),
		environmentVariableNameHTTPProxy,
		strings.ToLower(environmentVariableNameHTTPProxy),
	} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
