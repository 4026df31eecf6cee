package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Session 是沙箱内的一个执行上下文，拥有独立的工作目录和环境变量，与同一沙箱的其它会话共享文件系统。
// Session 本身不保存状态，可以并发使用。
type Session struct {
	sessionID string
	sandbox   *Sandbox
}

func newSession(sessionID string, sb *Sandbox) *Session {
	return &Session{sessionID: sessionID, sandbox: sb}
}

// ID 返回会话 ID。
func (s *Session) ID() string { return s.sessionID }

// SandboxID 返回所属沙箱的 ID。
func (s *Session) SandboxID() string { return s.sandbox.sandboxID }

func (s *Session) logger() *slog.Logger {
	return s.sandbox.manager.logger
}

// inject 将 sessionId 写入请求：POST/PUT 写入 JSON body，GET/DELETE 写入 query。
func (s *Session) inject(req request) request {
	switch req.method {
	case http.MethodPost, http.MethodPut:
		body := make(map[string]interface{}, len(req.body)+1)
		for k, v := range req.body {
			body[k] = v
		}
		body["sessionId"] = s.sessionID
		req.body = body
	case http.MethodGet, http.MethodDelete:
		query := make(url.Values, len(req.query)+1)
		for k, vs := range req.query {
			query[k] = append([]string(nil), vs...)
		}
		query.Set("sessionId", s.sessionID)
		req.query = query
	}
	return req
}

// do 发送会话请求，非 2xx 响应转换为 KindOperationFailed 错误，failure 为错误消息。
func (s *Session) do(ctx context.Context, op string, req request, failure string) (envelope, error) {
	req = s.inject(req)
	s.logger().DebugContext(ctx, "session request",
		slog.String("sessionId", s.sessionID),
		slog.String("method", req.method),
		slog.String("path", req.path))

	resp, err := s.sandbox.call(ctx, req)
	if err != nil {
		return envelope{}, err
	}
	s.logger().DebugContext(ctx, "session response",
		slog.String("sessionId", s.sessionID),
		slog.String("path", req.path),
		slog.Int("status", resp.statusCode))

	if !resp.ok() {
		return envelope{}, newOperationError(op, failure, resp.statusCode, resp.body)
	}
	return resp.envelope(), nil
}

// Write 创建或覆盖文本文件。
func (s *Session) Write(ctx context.Context, path, content string) error {
	_, err := s.do(ctx, "write", request{
		method: http.MethodPost,
		path:   "/files/write",
		body:   map[string]interface{}{"path": path, "content": content},
	}, fmt.Sprintf("Failed to write file '%s' in session '%s'", path, s.sessionID))
	return err
}

// WriteBytes 以 base64 编码上传二进制内容，可与 Download 配合实现原样往返。
func (s *Session) WriteBytes(ctx context.Context, path string, content []byte) error {
	_, err := s.do(ctx, "write", request{
		method: http.MethodPost,
		path:   "/files/write",
		body: map[string]interface{}{
			"path":     path,
			"content":  base64.StdEncoding.EncodeToString(content),
			"encoding": "base64",
		},
	}, fmt.Sprintf("Failed to write file '%s' in session '%s'", path, s.sessionID))
	return err
}

// Read 读取文本文件内容。
func (s *Session) Read(ctx context.Context, path string) (string, error) {
	env, err := s.do(ctx, "read", request{
		method: http.MethodGet,
		path:   "/files/read",
		query:  url.Values{"path": {path}},
	}, fmt.Sprintf("Failed to read file '%s' in session '%s'", path, s.sessionID))
	if err != nil {
		return "", err
	}
	if obj := env.object(); obj != nil {
		content, _ := obj["content"].(string)
		return content, nil
	}
	content, _ := env.payload().(string)
	return content, nil
}

// Download 读取文件的原始字节。服务端以 base64 返回内容，本地解码后返回。
func (s *Session) Download(ctx context.Context, path string) ([]byte, error) {
	failure := fmt.Sprintf("Failed to download file '%s' in session '%s'", path, s.sessionID)
	req := s.inject(request{
		method: http.MethodGet,
		path:   "/files/read",
		query:  url.Values{"path": {path}, "encoding": {"base64"}},
		stream: true,
	})

	resp, err := s.sandbox.issue(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, rErr := io.ReadAll(resp.Body)
		e := newOperationError("download", failure, resp.StatusCode, body)
		if rErr != nil {
			s.logger().WarnContext(ctx, "failed to read error response body", slog.String("path", path), slog.Any("error", rErr))
			e.Err = rErr
		}
		return nil, e
	}

	var payload struct {
		Data *struct {
			Content string `json:"content"`
		} `json:"data"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && err != io.EOF {
		return nil, decodeFailure("download", failure+": invalid response body", nil, err)
	}
	content := payload.Content
	if payload.Data != nil {
		content = payload.Data.Content
	}

	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, decodeFailure("download", failure+": invalid base64 content", nil, err)
	}
	return data, nil
}

// Delete 删除文件。
func (s *Session) Delete(ctx context.Context, path string) error {
	_, err := s.do(ctx, "delete", request{
		method: http.MethodDelete,
		path:   "/files/delete",
		query:  url.Values{"path": {path}},
	}, fmt.Sprintf("Failed to delete file '%s' in session '%s'", path, s.sessionID))
	return err
}

// Mkdir 创建目录，recursive 为 true 时同时创建父目录。
func (s *Session) Mkdir(ctx context.Context, path string, recursive bool) (Result, error) {
	env, err := s.do(ctx, "mkdir", request{
		method: http.MethodPost,
		path:   "/files/mkdir",
		body:   map[string]interface{}{"path": path, "recursive": recursive},
	}, fmt.Sprintf("Failed to create directory '%s' in session '%s'", path, s.sessionID))
	if err != nil {
		return nil, err
	}
	return env.result(), nil
}

// Exists 检查文件或目录是否存在，响应中缺少 exists 字段时返回 false。
func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	env, err := s.do(ctx, "exists", request{
		method: http.MethodGet,
		path:   "/files/exists",
		query:  url.Values{"path": {path}},
	}, fmt.Sprintf("Failed to check existence for '%s' in session '%s'", path, s.sessionID))
	if err != nil {
		return false, err
	}
	exists, _ := env.object()["exists"].(bool)
	return exists, nil
}

// Rename 重命名文件或目录。
func (s *Session) Rename(ctx context.Context, oldPath, newPath string) (Result, error) {
	env, err := s.do(ctx, "rename", request{
		method: http.MethodPost,
		path:   "/files/rename",
		body:   map[string]interface{}{"oldPath": oldPath, "newPath": newPath},
	}, fmt.Sprintf("Failed to rename '%s' to '%s' in session '%s'", oldPath, newPath, s.sessionID))
	if err != nil {
		return nil, err
	}
	return env.result(), nil
}

// Move 移动文件或目录。
func (s *Session) Move(ctx context.Context, sourcePath, destPath string) (Result, error) {
	env, err := s.do(ctx, "move", request{
		method: http.MethodPost,
		path:   "/files/move",
		body:   map[string]interface{}{"sourcePath": sourcePath, "destPath": destPath},
	}, fmt.Sprintf("Failed to move '%s' to '%s' in session '%s'", sourcePath, destPath, s.sessionID))
	if err != nil {
		return nil, err
	}
	return env.result(), nil
}

// MountBucket 将 S3 兼容存储桶挂载到 mountPath。opts 在发送前校验。
func (s *Session) MountBucket(ctx context.Context, bucket, mountPath string, opts MountOptions) (Result, error) {
	if bucket == "" {
		return nil, invalidArgument("mountBucket", "bucket must not be empty", nil)
	}
	if mountPath == "" {
		return nil, invalidArgument("mountBucket", "mount path must not be empty", nil)
	}
	if err := validateArgument("mountBucket", &opts); err != nil {
		return nil, err
	}

	env, err := s.do(ctx, "mountBucket", request{
		method: http.MethodPost,
		path:   "/mount-bucket",
		body:   map[string]interface{}{"bucket": bucket, "mountPath": mountPath, "options": opts.toMap()},
	}, fmt.Sprintf("Failed to mount bucket '%s' to '%s' in session '%s'", bucket, mountPath, s.sessionID))
	if err != nil {
		return nil, err
	}
	return env.result(), nil
}

// UnmountBucket 卸载 mountPath 上的存储桶。
func (s *Session) UnmountBucket(ctx context.Context, mountPath string) (Result, error) {
	env, err := s.do(ctx, "unmountBucket", request{
		method: http.MethodDelete,
		path:   "/unmount-bucket",
		query:  url.Values{"mountPath": {mountPath}},
	}, fmt.Sprintf("Failed to unmount bucket at '%s' in session '%s'", mountPath, s.sessionID))
	if err != nil {
		return nil, err
	}
	return env.result(), nil
}

// Run 在会话的 shell 中执行命令。命令的非零退出码不会作为错误返回。
func (s *Session) Run(ctx context.Context, command string) (ExecutionResult, error) {
	env, err := s.do(ctx, "run", request{
		method: http.MethodPost,
		path:   "/session/exec",
		body:   map[string]interface{}{"command": command},
	}, fmt.Sprintf("Failed to run command '%s' in session '%s'", command, s.sessionID))
	if err != nil {
		return nil, err
	}

	switch p := env.payload().(type) {
	case map[string]interface{}:
		if nested, ok := p["result"].(map[string]interface{}); ok {
			return ExecutionResult(nested), nil
		}
		return ExecutionResult(p), nil
	case nil:
		return ExecutionResult{}, nil
	}
	if text, ok := env.payload().(string); ok && text == "" {
		return ExecutionResult{}, nil
	}
	return nil, decodeFailure("run", fmt.Sprintf("Failed to run command '%s' in session '%s': unexpected response", command, s.sessionID), nil, nil)
}

// SetEnvVars 设置会话的环境变量。
func (s *Session) SetEnvVars(ctx context.Context, envVars map[string]string) error {
	for k := range envVars {
		if strings.TrimSpace(k) == "" {
			return invalidArgument("setEnvVars", "env var name must not be empty", nil)
		}
	}
	if envVars == nil {
		envVars = map[string]string{}
	}

	_, err := s.do(ctx, "setEnvVars", request{
		method: http.MethodPost,
		path:   "/session/env",
		body:   map[string]interface{}{"envVars": envVars},
	}, fmt.Sprintf("Failed to set environment variables for session '%s'", s.sessionID))
	return err
}

// SetEnvVarsAny 用于值类型不确定的场景（例如来自 JSON 的输入），
// 所有值必须为字符串，否则在发送请求前返回 KindInvalidArgument 错误。
func (s *Session) SetEnvVarsAny(ctx context.Context, envVars map[string]interface{}) error {
	keys := make([]string, 0, len(envVars))
	for k := range envVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	converted := make(map[string]string, len(envVars))
	for _, k := range keys {
		v, ok := envVars[k].(string)
		if !ok {
			return invalidArgument("setEnvVars",
				fmt.Sprintf("envVars must contain only string key-value pairs, got string:%T for %q", envVars[k], k), nil)
		}
		converted[k] = v
	}
	return s.SetEnvVars(ctx, converted)
}
