package io

import (
	"io"
)

// maxDrainBytes 是关闭响应体前最多丢弃的字节数，超过时直接关闭连接。
const maxDrainBytes = 256 << 10

// ReadAll 读取 r 的全部内容，r 为 *BytesNopCloser 时直接返回底层字节，不发生拷贝。
func ReadAll(r io.Reader) ([]byte, error) {
	switch b := r.(type) {
	case *BytesNopCloser:
		_, err := b.Seek(0, io.SeekEnd)
		return b.Bytes(), err
	default:
		return io.ReadAll(r)
	}
}

// DrainAndClose 丢弃未读完的响应体后关闭，使底层连接可以被复用。
func DrainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxDrainBytes))
	return rc.Close()
}
