package sandbox

// DefaultSessionID 是每个沙箱内置的默认会话，不能被删除。
const DefaultSessionID = "default"

// Result 是服务端返回的非结构化对象，例如 mkdir、rename、mount 的结果。
type Result map[string]interface{}

// ExecutionResult 是命令执行结果，字段由服务端定义，SDK 原样返回。
// 非零退出码不会被视为调用失败。
type ExecutionResult map[string]interface{}

// ExitCode 返回 exitCode 字段，缺失时返回 0。
func (r ExecutionResult) ExitCode() int {
	for _, key := range []string{"exitCode", "exit_code"} {
		switch v := r[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		}
	}
	return 0
}

// Output 返回 output 字段（标准输出），缺失时回退到 stdout。
func (r ExecutionResult) Output() string {
	if s, ok := r["output"].(string); ok {
		return s
	}
	s, _ := r["stdout"].(string)
	return s
}

// Stderr 返回 stderr 字段。
func (r ExecutionResult) Stderr() string {
	s, _ := r["stderr"].(string)
	return s
}

// Success 返回 success 字段；缺失时以退出码是否为 0 判断。
func (r ExecutionResult) Success() bool {
	if b, ok := r["success"].(bool); ok {
		return b
	}
	return r.ExitCode() == 0
}

// CreateOptions 是创建沙箱时透传给服务端的选项。
type CreateOptions struct {
	// KeepAlive 为 true 时沙箱不会因空闲自动休眠
	KeepAlive *bool `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
	// SleepAfter 空闲多久后休眠，例如 "30s"
	SleepAfter string `json:"sleepAfter,omitempty" yaml:"sleepAfter,omitempty"`
	// Extra 中的字段原样合并进请求，同名时覆盖上述字段
	Extra map[string]interface{} `json:"-" yaml:"extra,omitempty"`
}

func (o *CreateOptions) toMap() map[string]interface{} {
	if o == nil {
		return nil
	}
	m := make(map[string]interface{}, 2+len(o.Extra))
	if o.KeepAlive != nil {
		m["keepAlive"] = *o.KeepAlive
	}
	if o.SleepAfter != "" {
		m["sleepAfter"] = o.SleepAfter
	}
	for k, v := range o.Extra {
		m[k] = v
	}
	return m
}

// SessionOptions 是创建会话时的可选参数。若会话已存在，是否应用 Env 与 Cwd 由服务端决定。
type SessionOptions struct {
	Env map[string]string
	Cwd string
}

// BucketCredentials 是访问 S3 兼容存储的凭证。
type BucketCredentials struct {
	AccessKeyID     string `json:"accessKeyId" validate:"required"`
	SecretAccessKey string `json:"secretAccessKey" validate:"required"`
}

// MountOptions 描述挂载 S3 兼容存储桶所需的信息。
type MountOptions struct {
	Endpoint string `json:"endpoint" validate:"required,url"`

	// Provider 例如 "s3"、"r2"、"gcs"，由服务端解释
	Provider    string             `json:"provider,omitempty"`
	Credentials *BucketCredentials `json:"credentials,omitempty"`
	ReadOnly    bool               `json:"readOnly"`
	Prefix      string             `json:"prefix,omitempty"`

	// Extra 中的字段原样合并进 options，同名时覆盖上述字段
	Extra map[string]interface{} `json:"-"`
}

func (o *MountOptions) toMap() map[string]interface{} {
	m := make(map[string]interface{}, 5+len(o.Extra))
	m["endpoint"] = o.Endpoint
	if o.Provider != "" {
		m["provider"] = o.Provider
	}
	if o.Credentials != nil {
		m["credentials"] = map[string]interface{}{
			"accessKeyId":     o.Credentials.AccessKeyID,
			"secretAccessKey": o.Credentials.SecretAccessKey,
		}
	}
	m["readOnly"] = o.ReadOnly
	if o.Prefix != "" {
		m["prefix"] = o.Prefix
	}
	for k, v := range o.Extra {
		m[k] = v
	}
	return m
}

// BatchFailure 记录批量操作中单个对象的失败原因。
type BatchFailure struct {
	ID      string `json:"id" yaml:"id"`
	Message string `json:"message" yaml:"message"`
}

// BatchResult 是批量销毁操作的汇总结果。
type BatchResult struct {
	Destroyed    []string       `json:"destroyed" yaml:"destroyed"`
	Failed       []BatchFailure `json:"failed" yaml:"failed"`
	Total        int            `json:"total" yaml:"total"`
	SuccessCount int            `json:"success_count" yaml:"success_count"`
	FailureCount int            `json:"failure_count" yaml:"failure_count"`
}

func newBatchResult(total int) *BatchResult {
	return &BatchResult{
		Destroyed: []string{},
		Failed:    []BatchFailure{},
		Total:     total,
	}
}

func (r *BatchResult) succeed(id string) {
	r.Destroyed = append(r.Destroyed, id)
	r.SuccessCount = len(r.Destroyed)
}

func (r *BatchResult) fail(id string, err error) {
	r.Failed = append(r.Failed, BatchFailure{ID: id, Message: err.Error()})
	r.FailureCount = len(r.Failed)
}

// Bool 返回 v 的指针，便于设置 CreateOptions.KeepAlive 等可选字段。
func Bool(v bool) *bool {
	return &v
}
