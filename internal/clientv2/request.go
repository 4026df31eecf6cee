package clientv2

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const (
	RequestMethodGet    = http.MethodGet
	RequestMethodPut    = http.MethodPut
	RequestMethodPost   = http.MethodPost
	RequestMethodHead   = http.MethodHead
	RequestMethodDelete = http.MethodDelete
)

const ContentTypeJSON = "application/json"

type GetRequestBody func(options *RequestParams) (io.ReadCloser, error)

// GetJsonRequestBody 将 object 序列化为 JSON 请求体，每次调用都返回一个新的 reader，可用于重放。
func GetJsonRequestBody(object interface{}) (GetRequestBody, error) {
	reqBody, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	return func(o *RequestParams) (io.ReadCloser, error) {
		o.Header.Set("Content-Type", ContentTypeJSON)
		o.Header.Set("Content-Length", strconv.Itoa(len(reqBody)))
		return io.NopCloser(bytes.NewReader(reqBody)), nil
	}, nil
}

type RequestParams struct {
	Context context.Context
	Method  string
	Url     string
	Query   url.Values
	Header  http.Header
	GetBody GetRequestBody
}

func (o *RequestParams) init() {
	if o.Context == nil {
		o.Context = context.Background()
	}

	if len(o.Method) == 0 {
		o.Method = RequestMethodGet
	}

	if o.Header == nil {
		o.Header = http.Header{}
	}

	if o.GetBody == nil {
		o.GetBody = func(options *RequestParams) (io.ReadCloser, error) {
			return nil, nil
		}
	}
}

func NewRequest(options RequestParams) (req *http.Request, err error) {
	options.init()

	body, err := options.GetBody(&options)
	if err != nil {
		return nil, err
	}

	reqURL := options.Url
	if len(options.Query) > 0 {
		u, pErr := url.Parse(reqURL)
		if pErr != nil {
			return nil, pErr
		}
		q := u.Query()
		for k, vs := range options.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		reqURL = u.String()
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = body
	}
	req, err = http.NewRequestWithContext(options.Context, options.Method, reqURL, reqBody)
	if err != nil {
		return
	}
	req.Header = options.Header
	if body != nil {
		if n, cErr := strconv.ParseInt(options.Header.Get("Content-Length"), 10, 64); cErr == nil {
			req.ContentLength = n
		}
		req.GetBody = func() (io.ReadCloser, error) {
			return options.GetBody(&options)
		}
	}
	return
}
