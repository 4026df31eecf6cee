package sandbox

import (
	"encoding/json"
)

type envelopeKind int

const (
	// envelopeWrapped 响应体为 {"data": ..., "message": ..., "code": ...}
	envelopeWrapped envelopeKind = iota + 1
	// envelopeRaw 响应体是合法 JSON，但不带 data 字段
	envelopeRaw
	// envelopeText 响应体不是 JSON
	envelopeText
)

// envelope 是响应体解码后的结果，调用方统一通过 payload 取值。
type envelope struct {
	kind envelopeKind
	data interface{}
	raw  interface{}
	text string
}

func decodeEnvelope(body []byte) envelope {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return envelope{kind: envelopeText, text: string(body)}
	}
	if obj, ok := v.(map[string]interface{}); ok {
		if data, ok := obj["data"]; ok {
			return envelope{kind: envelopeWrapped, data: data}
		}
	}
	return envelope{kind: envelopeRaw, raw: v}
}

// payload 返回 data 字段（wrapped）或整个响应体（raw / text）。
func (e envelope) payload() interface{} {
	switch e.kind {
	case envelopeWrapped:
		return e.data
	case envelopeRaw:
		return e.raw
	default:
		return e.text
	}
}

// object 返回 payload 中的 JSON 对象，payload 不是对象时返回 nil。
func (e envelope) object() map[string]interface{} {
	obj, _ := e.payload().(map[string]interface{})
	return obj
}

// stringField 读取 payload 对象中的字符串字段。
func (e envelope) stringField(key string) (string, bool) {
	s, ok := e.object()[key].(string)
	return s, ok
}

// result 将 payload 转为 Result；非对象类型的 payload 放在 "data" 键下。
func (e envelope) result() Result {
	switch p := e.payload().(type) {
	case map[string]interface{}:
		return Result(p)
	case nil:
		return Result{}
	case string:
		if p == "" {
			return Result{}
		}
		return Result{"data": p}
	default:
		return Result{"data": p}
	}
}
