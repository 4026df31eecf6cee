package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
)

// Sandbox 表示一个远程沙箱。
// 由 Manager.CreateOrGet 返回，文件与命令操作默认在 "default" 会话中执行。
type Sandbox struct {
	sandboxID string
	manager   *Manager

	// 默认会话（懒初始化，不发送请求）
	defaultOnce    sync.Once
	defaultSession *Session
}

func newSandbox(sandboxID string, m *Manager) *Sandbox {
	return &Sandbox{sandboxID: sandboxID, manager: m}
}

// ID 返回沙箱 ID。
func (s *Sandbox) ID() string { return s.sandboxID }

// DefaultSession 返回默认会话。
func (s *Sandbox) DefaultSession() *Session {
	s.defaultOnce.Do(func() {
		s.defaultSession = newSession(DefaultSessionID, s)
	})
	return s.defaultSession
}

func (s *Sandbox) call(ctx context.Context, req request) (*response, error) {
	req.sandboxID = s.sandboxID
	return s.manager.router.call(ctx, req)
}

func (s *Sandbox) issue(ctx context.Context, req request) (*http.Response, error) {
	req.sandboxID = s.sandboxID
	return s.manager.router.issue(ctx, req)
}

// Write 在默认会话中创建或覆盖文件。
func (s *Sandbox) Write(ctx context.Context, path, content string) error {
	return s.DefaultSession().Write(ctx, path, content)
}

// WriteBytes 在默认会话中写入二进制文件。
func (s *Sandbox) WriteBytes(ctx context.Context, path string, content []byte) error {
	return s.DefaultSession().WriteBytes(ctx, path, content)
}

// Read 在默认会话中读取文本文件。
func (s *Sandbox) Read(ctx context.Context, path string) (string, error) {
	return s.DefaultSession().Read(ctx, path)
}

// Download 在默认会话中下载文件原始内容。
func (s *Sandbox) Download(ctx context.Context, path string) ([]byte, error) {
	return s.DefaultSession().Download(ctx, path)
}

// Delete 在默认会话中删除文件。
func (s *Sandbox) Delete(ctx context.Context, path string) error {
	return s.DefaultSession().Delete(ctx, path)
}

// Mkdir 在默认会话中创建目录。
func (s *Sandbox) Mkdir(ctx context.Context, path string, recursive bool) (Result, error) {
	return s.DefaultSession().Mkdir(ctx, path, recursive)
}

// Exists 在默认会话中检查文件或目录是否存在。
func (s *Sandbox) Exists(ctx context.Context, path string) (bool, error) {
	return s.DefaultSession().Exists(ctx, path)
}

// Rename 在默认会话中重命名文件。
func (s *Sandbox) Rename(ctx context.Context, oldPath, newPath string) (Result, error) {
	return s.DefaultSession().Rename(ctx, oldPath, newPath)
}

// Move 在默认会话中移动文件。
func (s *Sandbox) Move(ctx context.Context, sourcePath, destPath string) (Result, error) {
	return s.DefaultSession().Move(ctx, sourcePath, destPath)
}

// MountBucket 在默认会话中将 S3 兼容存储桶挂载到 mountPath。
func (s *Sandbox) MountBucket(ctx context.Context, bucket, mountPath string, opts MountOptions) (Result, error) {
	return s.DefaultSession().MountBucket(ctx, bucket, mountPath, opts)
}

// UnmountBucket 在默认会话中卸载 mountPath 上的存储桶。
func (s *Sandbox) UnmountBucket(ctx context.Context, mountPath string) (Result, error) {
	return s.DefaultSession().UnmountBucket(ctx, mountPath)
}

// Run 在默认会话中执行命令。
func (s *Sandbox) Run(ctx context.Context, command string) (ExecutionResult, error) {
	return s.DefaultSession().Run(ctx, command)
}

// RunScript 在默认会话中上传并执行脚本，参见 Session.RunScript。
func (s *Sandbox) RunScript(ctx context.Context, scriptPathOrContent, interpreter, sandboxPath string) (ExecutionResult, error) {
	return s.DefaultSession().RunScript(ctx, scriptPathOrContent, interpreter, sandboxPath)
}

// SetEnvVars 设置默认会话的环境变量。
func (s *Sandbox) SetEnvVars(ctx context.Context, envVars map[string]string) error {
	return s.DefaultSession().SetEnvVars(ctx, envVars)
}

// SetEnvVarsAny 校验所有值均为字符串后设置默认会话的环境变量。
func (s *Sandbox) SetEnvVarsAny(ctx context.Context, envVars map[string]interface{}) error {
	return s.DefaultSession().SetEnvVarsAny(ctx, envVars)
}

// CreateOrGetSession 创建或获取一个隔离的执行会话。
//
// sessionID 为空时由服务端生成。会话已存在时 opts 是否生效由服务端决定。
func (s *Sandbox) CreateOrGetSession(ctx context.Context, sessionID string, opts *SessionOptions) (*Session, error) {
	body := map[string]interface{}{}
	if sessionID != "" {
		body["id"] = sessionID
	}
	if opts != nil {
		if len(opts.Env) > 0 {
			body["env"] = opts.Env
		}
		if opts.Cwd != "" {
			body["cwd"] = opts.Cwd
		}
	}

	failure := fmt.Sprintf("Failed to create session in sandbox '%s'", s.sandboxID)
	if sessionID != "" {
		failure = fmt.Sprintf("Failed to create session '%s' in sandbox '%s'", sessionID, s.sandboxID)
	}

	resp, err := s.call(ctx, request{method: http.MethodPost, path: "/session", body: body})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, newOperationError("createSession", failure, resp.statusCode, resp.body)
	}

	created, _ := resp.envelope().stringField("sessionId")
	if created == "" {
		created = sessionID
	}
	if created == "" {
		// 2xx 但响应中没有 sessionId
		return nil, decodeFailure("createSession", failure+": server did not return sessionId", resp.body, nil)
	}
	return newSession(created, s), nil
}

// DeleteSession 删除会话。默认会话不能删除，要释放它请销毁整个沙箱。
func (s *Sandbox) DeleteSession(ctx context.Context, sessionID string) (Result, error) {
	if sessionID == DefaultSessionID {
		return nil, &Error{
			Kind:    KindInvalidOperation,
			Op:      "deleteSession",
			Message: "Cannot delete default session. Use Manager.Destroy to terminate the sandbox.",
		}
	}
	if sessionID == "" {
		return nil, invalidArgument("deleteSession", "session id must not be empty", nil)
	}

	resp, err := s.call(ctx, request{
		method: http.MethodDelete,
		path:   "/session",
		query:  url.Values{"session_id": {sessionID}},
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, newOperationError("deleteSession", fmt.Sprintf("Failed to delete session '%s'", sessionID), resp.statusCode, resp.body)
	}
	return resp.envelope().result(), nil
}

// ListSessions 返回服务端记录的会话 ID（包括 "default"）。
func (s *Sandbox) ListSessions(ctx context.Context) ([]string, error) {
	resp, err := s.call(ctx, request{method: http.MethodGet, path: "/api/session/list"})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, newOperationError("listSessions", fmt.Sprintf("Failed to list sessions of sandbox '%s'", s.sandboxID), resp.statusCode, resp.body)
	}

	var entries []interface{}
	switch p := resp.envelope().payload().(type) {
	case []interface{}:
		entries = p
	case map[string]interface{}:
		list, ok := p["sessions"].([]interface{})
		if !ok {
			return nil, decodeFailure("listSessions", "unexpected session list response", resp.body, nil)
		}
		entries = list
	case nil:
	default:
		return nil, decodeFailure("listSessions", "unexpected session list response", resp.body, nil)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch e := entry.(type) {
		case string:
			ids = append(ids, e)
		case map[string]interface{}:
			if id, ok := e["id"].(string); ok && id != "" {
				ids = append(ids, id)
			} else if id, ok := e["sessionId"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// DestroyAllSessions 删除沙箱内除 "default" 以外的全部会话。
//
// 获取会话列表失败时视为没有会话。continueOnError 的语义与 Manager.DestroyAll 相同。
func (s *Sandbox) DestroyAllSessions(ctx context.Context, continueOnError bool) (*BatchResult, error) {
	ids, err := s.ListSessions(ctx)
	if err != nil {
		s.manager.logger.WarnContext(ctx, "list sessions failed, nothing to destroy",
			slog.String("sandboxId", s.sandboxID), slog.Any("error", err))
		ids = nil
	}

	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != DefaultSessionID {
			targets = append(targets, id)
		}
	}

	result := newBatchResult(len(targets))
	for _, id := range targets {
		if _, err := s.DeleteSession(ctx, id); err != nil {
			result.fail(id, err)
			if !continueOnError {
				return result, err
			}
			continue
		}
		result.succeed(id)
	}
	return result, nil
}
