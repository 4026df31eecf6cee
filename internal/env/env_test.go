package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutFromEnvironment(t *testing.T) {
	ast := assert.New(t)

	t.Setenv("SANDBOX_TIMEOUT", "")
	_, ok := TimeoutFromEnvironment()
	ast.False(ok)

	t.Setenv("SANDBOX_TIMEOUT", "45s")
	d, ok := TimeoutFromEnvironment()
	ast.True(ok)
	ast.Equal(45*time.Second, d)

	t.Setenv("SANDBOX_TIMEOUT", "12")
	d, ok = TimeoutFromEnvironment()
	ast.True(ok)
	ast.Equal(12*time.Second, d)

	t.Setenv("SANDBOX_TIMEOUT", "-3")
	_, ok = TimeoutFromEnvironment()
	ast.False(ok)

	t.Setenv("SANDBOX_TIMEOUT", "soon")
	_, ok = TimeoutFromEnvironment()
	ast.False(ok)
}

func TestDisableProxyDetectFromEnvironment(t *testing.T) {
	ast := assert.New(t)

	t.Setenv("SANDBOX_DISABLE_PROXY_DETECT", "")
	_, set := DisableProxyDetectFromEnvironment()
	ast.False(set)

	for _, v := range []string{"true", "YES", "y", "1"} {
		t.Setenv("SANDBOX_DISABLE_PROXY_DETECT", v)
		disabled, set := DisableProxyDetectFromEnvironment()
		ast.True(set)
		ast.True(disabled, v)
	}

	t.Setenv("SANDBOX_DISABLE_PROXY_DETECT", "no")
	disabled, set := DisableProxyDetectFromEnvironment()
	ast.True(set)
	ast.False(disabled)
}

func TestProxyFromEnvironment(t *testing.T) {
	ast := assert.New(t)

	for _, name := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		t.Setenv(name, "")
	}
	ast.Empty(ProxyFromEnvironment())

	t.Setenv("http_proxy", "http://127.0.0.1:1080")
	ast.Equal("http://127.0.0.1:1080", ProxyFromEnvironment())

	t.Setenv("HTTPS_PROXY", "http://proxy.internal:3128")
	ast.Equal("http://proxy.internal:3128", ProxyFromEnvironment())
}

func TestBaseURLFromEnvironment(t *testing.T) {
	t.Setenv("SANDBOX_BASE_URL", "  http://sandbox.internal:8787 ")
	assert.Equal(t, "http://sandbox.internal:8787", BaseURLFromEnvironment())
}
