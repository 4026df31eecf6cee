// Package sandboxtest 提供一个进程内的沙箱服务模拟实现，用于单元测试。
//
// Server 记录收到的每个请求，默认按内存文件系统处理文件与会话接口，
// 也可以通过 Handle 为某个接口指定自定义响应。
package sandboxtest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// Request 是 Server 收到的一次请求。
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	RawBody []byte
	// Body 是解析后的 JSON 请求体，非 JSON 时为 nil
	Body map[string]interface{}
}

// SandboxID 返回请求头 x-sandbox-id 的值。
func (r Request) SandboxID() string {
	return r.Header.Get("x-sandbox-id")
}

type sandboxState struct {
	files    map[string][]byte
	dirs     map[string]bool
	sessions []string
	env      map[string]map[string]string
	mounts   map[string]string
}

func newSandboxState() *sandboxState {
	return &sandboxState{
		files:    map[string][]byte{},
		dirs:     map[string]bool{},
		sessions: []string{"default"},
		env:      map[string]map[string]string{},
		mounts:   map[string]string{},
	}
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Request
	overrides map[string]http.HandlerFunc
	sandboxes map[string]*sandboxState
	sessionN  int
}

// NewServer 启动模拟服务，测试结束时自动关闭。
func NewServer(t testing.TB) *Server {
	s := &Server{
		overrides: map[string]http.HandlerFunc{},
		sandboxes: map[string]*sandboxState{},
	}

	r := mux.NewRouter()
	r.Use(s.record)
	s.route(r, http.MethodPost, "/lifecycle", s.createSandbox)
	s.route(r, http.MethodDelete, "/lifecycle", s.destroySandbox)
	s.route(r, http.MethodPost, "/session", s.createSession)
	s.route(r, http.MethodDelete, "/session", s.deleteSession)
	s.route(r, http.MethodGet, "/api/session/list", s.listSessions)
	s.route(r, http.MethodPost, "/session/exec", s.exec)
	s.route(r, http.MethodPost, "/session/env", s.setEnv)
	s.route(r, http.MethodPost, "/files/write", s.writeFile)
	s.route(r, http.MethodGet, "/files/read", s.readFile)
	s.route(r, http.MethodDelete, "/files/delete", s.deleteFile)
	s.route(r, http.MethodPost, "/files/mkdir", s.mkdir)
	s.route(r, http.MethodGet, "/files/exists", s.exists)
	s.route(r, http.MethodPost, "/files/rename", s.rename)
	s.route(r, http.MethodPost, "/files/move", s.rename)
	s.route(r, http.MethodPost, "/mount-bucket", s.mount)
	s.route(r, http.MethodDelete, "/unmount-bucket", s.unmount)
	r.NotFoundHandler = s.record(s.fallback(http.StatusNotFound))
	r.MethodNotAllowedHandler = s.record(s.fallback(http.StatusMethodNotAllowed))

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// fallback 处理未注册的路由：存在自定义处理函数时使用它，否则返回 status。
func (s *Server) fallback(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if h := s.override(req.Method, req.URL.Path); h != nil {
			h(w, req)
			return
		}
		JSON(w, status, map[string]interface{}{"code": status, "message": http.StatusText(status)})
	})
}

func (s *Server) route(r *mux.Router, method, path string, h http.HandlerFunc) {
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if o := s.override(method, path); o != nil {
			o(w, req)
			return
		}
		h(w, req)
	}).Methods(method)
}

func (s *Server) override(method, path string) http.HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides[method+" "+path]
}

// Handle 为 method path 指定自定义处理函数，覆盖默认行为。
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+path] = h
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(raw))

		rec := Request{
			Method:  req.Method,
			Path:    req.URL.Path,
			Query:   req.URL.Query(),
			Header:  req.Header.Clone(),
			RawBody: raw,
		}
		if len(raw) > 0 {
			var body map[string]interface{}
			if json.Unmarshal(raw, &body) == nil {
				rec.Body = body
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()
		next.ServeHTTP(w, req)
	})
}

// Requests 返回收到的全部请求。
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count 返回收到的请求数。
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Last 返回最后一个请求，没有请求时 ok 为 false。
func (s *Server) Last() (req Request, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Find 返回匹配 method path 的请求。
func (s *Server) Find(method, path string) []Request {
	var found []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			found = append(found, r)
		}
	}
	return found
}

// Reset 清空请求记录。
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// SetFile 直接写入模拟文件系统。
func (s *Server) SetFile(sandboxID, path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(sandboxID).files[path] = content
}

// File 读取模拟文件系统中的文件。
func (s *Server) File(sandboxID, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.state(sandboxID).files[path]
	return content, ok
}

// Sessions 返回沙箱内的会话列表。
func (s *Server) Sessions(sandboxID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.state(sandboxID).sessions...)
}

// Env 返回会话的环境变量。
func (s *Server) Env(sandboxID, sessionID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.state(sandboxID).env[sessionID] {
		out[k] = v
	}
	return out
}

func (s *Server) state(sandboxID string) *sandboxState {
	st, ok := s.sandboxes[sandboxID]
	if !ok {
		st = newSandboxState()
		s.sandboxes[sandboxID] = st
	}
	return st
}

// JSON 以 status 写出 v 的 JSON 编码。
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data 写出 {"data": data, "message": "ok", "code": 0}。
func Data(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, map[string]interface{}{"data": data, "message": "ok", "code": 0})
}

// Status 返回一个固定状态码与响应体的处理函数。
func Status(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// Body 返回一个固定 200 JSON 响应体的处理函数。
func Body(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func decodeBody(req *http.Request) map[string]interface{} {
	var body map[string]interface{}
	_ = json.NewDecoder(req.Body).Decode(&body)
	if body == nil {
		body = map[string]interface{}{}
	}
	return body
}

func str(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func sessionOf(req *http.Request, body map[string]interface{}) string {
	if body != nil {
		if id := str(body, "sessionId"); id != "" {
			return id
		}
	}
	return req.URL.Query().Get("sessionId")
}

func (s *Server) createSandbox(w http.ResponseWriter, req *http.Request) {
	id := req.Header.Get("x-sandbox-id")
	s.mu.Lock()
	s.state(id)
	s.mu.Unlock()
	Data(w, map[string]interface{}{"sandboxId": id})
}

func (s *Server) destroySandbox(w http.ResponseWriter, req *http.Request) {
	id := req.Header.Get("x-sandbox-id")
	s.mu.Lock()
	delete(s.sandboxes, id)
	s.mu.Unlock()
	Data(w, map[string]interface{}{"success": true})
}

func (s *Server) createSession(w http.ResponseWriter, req *http.Request) {
	body := decodeBody(req)
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(req.Header.Get("x-sandbox-id"))
	id := str(body, "id")
	if id == "" {
		s.sessionN++
		id = fmt.Sprintf("session-%d", s.sessionN)
	}
	found := false
	for _, existing := range st.sessions {
		found = found || existing == id
	}
	if !found {
		st.sessions = append(st.sessions, id)
	}
	if env, ok := body["env"].(map[string]interface{}); ok {
		vars := map[string]string{}
		for k, v := range env {
			vars[k], _ = v.(string)
		}
		st.env[id] = vars
	}
	Data(w, map[string]interface{}{"sessionId": id, "cwd": str(body, "cwd")})
}

func (s *Server) deleteSession(w http.ResponseWriter, req *http.Request) {
	id := req.URL.Query().Get("session_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(req.Header.Get("x-sandbox-id"))
	for i, existing := range st.sessions {
		if existing == id {
			st.sessions = append(st.sessions[:i], st.sessions[i+1:]...)
			Data(w, map[string]interface{}{"success": true, "sessionId": id})
			return
		}
	}
	JSON(w, http.StatusNotFound, map[string]interface{}{"code": "SESSION_NOT_FOUND", "message": "session not found"})
}

func (s *Server) listSessions(w http.ResponseWriter, req *http.Request) {
	Data(w, s.Sessions(req.Header.Get("x-sandbox-id")))
}

func (s *Server) exec(w http.ResponseWriter, req *http.Request) {
	body := decodeBody(req)
	Data(w, map[string]interface{}{"result": map[string]interface{}{
		"exitCode":  0,
		"output":    str(body, "command"),
		"stderr":    "",
		"success":   true,
		"sessionId": sessionOf(req, body),
	}})
}

func (s *Server) setEnv(w http.ResponseWriter, req *http.Request) {
	body := decodeBody(req)
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(req.Header.Get("x-sandbox-id"))
	session := sessionOf(req, body)
	if st.env[session] == nil {
		st.env[session] = map[string]string{}
	}
	if vars, ok := body["envVars"].(map[string]interface{}); ok {
		for k, v := range vars {
			st.env[session][k], _ = v.(string)
		}
	}
	Data(w, map[string]interface{}{"success": true})
}

func (s *Server) writeFile(w http.ResponseWriter, req *http.Request) {
	body := decodeBody(req)
	content := []byte(str(body, "content"))
	if str(body, "encoding") == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(string(content))
		if err != nil {
			JSON(w, http.StatusBadRequest, map[string]interface{}{"code": "BAD_CONTENT", "message": err.Error()})
			return
		}
		content = decoded
	}
	s.SetFile(req.Header.Get("x-sandbox-id"), str(body, "path"), content)
	Data(w, map[string]interface{}{"success": true, "path": str(body, "path")})
}

func (s *Server) readFile(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	content, ok := s.File(req.Header.Get("x-sandbox-id"), q.Get("path"))
	if !ok {
		JSON(w, http.StatusNotFound, map[string]interface{}{"code": "FILE_NOT_FOUND", "message": "file not found: " + q.Get("path")})
		return
	}
	text := string(content)
	if q.Get("encoding") == "base64" {
		text = base64.StdEncoding.EncodeToString(content)
	}
	Data(w, map[string]interface{}{"content": text, "path": q.Get("path")})
}

func (s *Server) deleteFile(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Query().Get("path")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state(req.Header.Get("x-sandbox-id")).files, path)
	Data(w, map[string]interface{}{"success": true})
}

func (s *Server) mkdir(w http.ResponseWriter, req *http.Request) {
	body := decodeBody(req)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(req.Header.Get("x-sandbox-id")).dirs[str(body, "path")] = true
	Data(w, map[string]interface{}{"success": true, "path": str(body, "path"), "recursive": body["recursive"]})
}

func (s *Server) exists(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Query().Get("path")
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(req.Header.Get("x-sandbox-id"))
	_, isFile := st.files[path]
	Data(w, map[string]interface{}{"exists": isFile || st.dirs[path]})
}

func (s *Server) rename(w http.ResponseWriter, req *http.Request) {
	body := decodeBody(req)
	from, to := str(body, "oldPath"), str(body, "newPath")
	if from == "" {
		from, to = str(body, "sourcePath"), str(body, "destPath")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(req.Header.Get("x-sandbox-id"))
	content, ok := st.files[from]
	if !ok {
		JSON(w, http.StatusNotFound, map[string]interface{}{"code": "FILE_NOT_FOUND", "message": "file not found: " + from})
		return
	}
	delete(st.files, from)
	st.files[to] = content
	Data(w, map[string]interface{}{"success": true, "path": to})
}

func (s *Server) mount(w http.ResponseWriter, req *http.Request) {
	body := decodeBody(req)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(req.Header.Get("x-sandbox-id")).mounts[str(body, "mountPath")] = str(body, "bucket")
	Data(w, map[string]interface{}{"success": true, "bucket": str(body, "bucket"), "mountPath": str(body, "mountPath")})
}

func (s *Server) unmount(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Query().Get("mountPath")
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(req.Header.Get("x-sandbox-id"))
	if _, ok := st.mounts[path]; !ok {
		JSON(w, http.StatusNotFound, map[string]interface{}{"code": "NOT_MOUNTED", "message": "nothing mounted at " + path})
		return
	}
	delete(st.mounts, path)
	Data(w, map[string]interface{}{"success": true, "mountPath": path})
}

// sortedKeys 用于稳定输出。
func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Files 返回沙箱内全部文件路径。
func (s *Server) Files(sandboxID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.state(sandboxID).files)
}
