package clientv2

import (
	"net/http"
	"sort"
)

// Client 是最小化的 HTTP 执行接口，*http.Client 直接满足该接口。
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

type Handler func(req *http.Request) (*http.Response, error)

type client struct {
	coreClient   Client
	interceptors interceptorList
}

// NewClient 用拦截器包装 cli，cli 为 nil 时使用 http.DefaultClient。
// 拦截器按优先级排序，数字越小越靠外层。
func NewClient(cli Client, interceptors ...Interceptor) Client {
	if cli == nil {
		cli = http.DefaultClient
	}

	is := make(interceptorList, 0, len(interceptors))
	for _, i := range interceptors {
		if i != nil {
			is = append(is, i)
		}
	}

	return &client{
		coreClient:   cli,
		interceptors: is,
	}
}

func (c *client) Do(req *http.Request) (*http.Response, error) {
	handler := func(req *http.Request) (*http.Response, error) {
		return c.coreClient.Do(req)
	}

	interceptors := append(interceptorList{}, c.interceptors...)
	interceptors = append(interceptors, getIntercetorsFromRequest(req)...)
	sort.Stable(interceptors)

	// 反转，使优先级最高的拦截器最后包装、最先执行
	for i, j := 0, len(interceptors)-1; i < j; i, j = i+1, j-1 {
		interceptors[i], interceptors[j] = interceptors[j], interceptors[i]
	}

	for _, interceptor := range interceptors {
		h := handler
		i := interceptor
		handler = func(r *http.Request) (*http.Response, error) {
			return i.Intercept(r, h)
		}
	}

	return handler(req)
}

// Do 根据 options 构造请求并发送。不解释 HTTP 状态码，由调用方自行判断。
func Do(c Client, options RequestParams) (*http.Response, error) {
	req, err := NewRequest(options)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
