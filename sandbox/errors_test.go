package sandbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	ast := assert.New(t)

	err := newOperationError("write", "Failed to write file '/a' in session 'default'", 500, []byte(`boom`))
	ast.True(errors.Is(err, ErrOperationFailed))
	ast.False(errors.Is(err, ErrTimeout))

	wrapped := fmt.Errorf("outer: %w", err)
	ast.True(errors.Is(wrapped, ErrOperationFailed))
	ast.Equal(KindOperationFailed, KindOf(wrapped))
	ast.Equal(500, StatusCodeOf(wrapped))

	ast.Equal(Kind(0), KindOf(errors.New("plain")))
	ast.Equal(0, StatusCodeOf(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &Error{Kind: KindConnectionFailure, Message: "Failed to connect", Err: cause}
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrConnectionFailure))
	assert.Equal(t, "Failed to connect", err.Error())
}

func TestErrorMessage(t *testing.T) {
	ast := assert.New(t)

	err := newOperationError("read", "Failed to read file '/a' in session 'default'", 404,
		[]byte(`{"code": "FILE_NOT_FOUND", "message": "file not found"}`))
	ast.Equal("FILE_NOT_FOUND", err.Code)
	ast.Equal("file not found", err.ServerMessage)
	ast.Equal("Failed to read file '/a' in session 'default': status 404: file not found", err.Error())

	err = newOperationError("read", "Failed", 502, []byte(`bad gateway`))
	ast.Equal("Failed: status 502, body: bad gateway", err.Error())

	err = newOperationError("read", "Failed", 400, []byte(`{"code": 40001, "error": "bad path"}`))
	ast.Equal("40001", err.Code)
	ast.Equal("bad path", err.ServerMessage)

	transport := &Error{Kind: KindTransportFailure, Message: "Request to x failed", Err: errors.New("eof")}
	ast.Equal("Request to x failed: eof", transport.Error())

	ast.Equal("invalid argument", (&Error{Kind: KindInvalidArgument}).Error())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "decode failure", KindDecodeFailure.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
