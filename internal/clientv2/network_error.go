package clientv2

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"syscall"
)

// IsTimeout 判断 err 是否由请求超时引起，包括 context 截止时间到达。
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	switch t := err.(type) {
	case *url.Error:
		return IsTimeout(t.Err)
	case *net.OpError:
		if isSyscallErrno(t.Err, syscall.ETIMEDOUT) {
			return true
		}
		return t.Timeout()
	case net.Error:
		return t.Timeout()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsConnectionError 判断 err 是否为无法建立连接类错误，例如 DNS 解析失败或连接被拒绝。
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	switch t := err.(type) {
	case *url.Error:
		return IsConnectionError(t.Err)
	case *net.OpError:
		return isConnectionErrorWithOpError(t)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return isConnectionErrorWithOpError(opErr)
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionErrorWithOpError(err *net.OpError) bool {
	if err == nil {
		return false
	}
	if err.Op == "dial" {
		return true
	}

	switch t := err.Err.(type) {
	case *net.DNSError:
		return true
	case *os.SyscallError:
		return isSyscallErrno(t, syscall.ECONNREFUSED)
	}
	return isSyscallErrno(err.Err, syscall.ECONNREFUSED)
}

func isSyscallErrno(err error, target syscall.Errno) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == target
	}
	return false
}
