package http1

import "context"

// Router 业务层入口。返回 nil 表示 resp 已填充完毕可以发送；
// 返回错误时引擎以通用 500 响应替换。实现不得在返回后持有 req。
type Router interface {
	Route(ctx context.Context, req *Request, resp *Response) error
}

// RouterFunc 函数适配器
type RouterFunc func(ctx context.Context, req *Request, resp *Response) error

// Route implements Router.
func (f RouterFunc) Route(ctx context.Context, req *Request, resp *Response) error {
	return f(ctx, req, resp)
}
