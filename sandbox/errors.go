package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Kind 区分错误的来源。
type Kind int

const (
	// KindTimeout 请求在配置的超时时间内未完成，StatusCode 为 0。
	KindTimeout Kind = iota + 1
	// KindConnectionFailure 无法与服务端建立连接，StatusCode 为 0。
	KindConnectionFailure
	// KindTransportFailure 其它传输层错误，StatusCode 为 0。
	KindTransportFailure
	// KindOperationFailed 服务端返回了非 2xx 状态码。
	KindOperationFailed
	// KindInvalidOperation 本地拒绝的操作，未发出任何请求。
	KindInvalidOperation
	// KindInvalidArgument 本地参数校验失败，未发出任何请求。
	KindInvalidArgument
	// KindDecodeFailure 2xx 响应体无法解析出所需字段。
	KindDecodeFailure
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailure:
		return "connection failure"
	case KindTransportFailure:
		return "transport failure"
	case KindOperationFailed:
		return "operation failed"
	case KindInvalidOperation:
		return "invalid operation"
	case KindInvalidArgument:
		return "invalid argument"
	case KindDecodeFailure:
		return "decode failure"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// 与 errors.Is 配合使用的哨兵错误，例如 errors.Is(err, sandbox.ErrTimeout)。
var (
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrConnectionFailure = &Error{Kind: KindConnectionFailure}
	ErrTransportFailure  = &Error{Kind: KindTransportFailure}
	ErrOperationFailed   = &Error{Kind: KindOperationFailed}
	ErrInvalidOperation  = &Error{Kind: KindInvalidOperation}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrDecodeFailure     = &Error{Kind: KindDecodeFailure}
)

// Error 是 SDK 返回的唯一错误类型。
type Error struct {
	Kind Kind

	// Op 是出错的操作名，例如 "write"、"createOrGet"。
	Op string

	Message string

	// StatusCode 为 0 表示请求未得到 HTTP 响应。
	StatusCode int

	// Body 是服务端返回的原始响应体（如果有）。
	Body []byte

	// Code 和 ServerMessage 是从响应 envelope 中解析出的字段（如果有）。
	Code          string
	ServerMessage string

	// Err 是底层原因。
	Err error
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
		if e.ServerMessage != "" {
			msg += ": " + e.ServerMessage
		} else if len(e.Body) > 0 {
			msg += ", body: " + string(e.Body)
		}
	} else if e.Err != nil && e.Kind != KindTimeout && e.Kind != KindConnectionFailure {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 比较，使哨兵错误可用于 errors.Is。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.StatusCode == 0
}

// KindOf 返回 err 链中第一个 *Error 的 Kind，不存在时返回 0。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusCodeOf 返回 err 链中第一个 *Error 的 HTTP 状态码。
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// newOperationError 创建 KindOperationFailed 错误并尝试从响应体中解析 code 和 message 字段。
func newOperationError(op, message string, statusCode int, body []byte) *Error {
	e := &Error{
		Kind:       KindOperationFailed,
		Op:         op,
		Message:    message,
		StatusCode: statusCode,
		Body:       body,
	}
	e.Code, e.ServerMessage = parseErrorBody(body)
	return e
}

func invalidArgument(op, message string, cause error) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Message: message, Err: cause}
}

func decodeFailure(op, message string, body []byte, cause error) *Error {
	return &Error{Kind: KindDecodeFailure, Op: op, Message: message, Body: body, Err: cause}
}

// parseErrorBody 尝试从 JSON body 中解析 code 和 message 字段，code 可以是字符串或数字。
func parseErrorBody(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	var parsed struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return "", ""
	}
	message = parsed.Message
	if message == "" {
		message = parsed.Error
	}
	if len(parsed.Code) > 0 {
		var s string
		if json.Unmarshal(parsed.Code, &s) == nil {
			code = s
		} else if string(parsed.Code) != "null" {
			code = string(parsed.Code)
		}
	}
	return code, message
}
