// Package router 提供满足 http1.Router 契约的方法 + 路径前缀分发器，
// 以及一组示例处理函数。
package router

import (
	"context"
	"slices"
	"strings"

	"github.com/BaSui01/h1d/internal/http1"
)

// HandlerFunc 处理一个已匹配的请求
type HandlerFunc func(ctx context.Context, req *http1.Request, resp *http1.Response) error

type route struct {
	method  string
	pattern string
	prefix  bool
	handler HandlerFunc
}

func (r route) matches(path string) bool {
	if r.prefix {
		return strings.HasPrefix(path, r.pattern)
	}
	return path == r.pattern
}

// Mux 按注册顺序匹配路径；路径匹配但方法不符返回 405，无匹配返回 404
type Mux struct {
	routes []route
}

var _ http1.Router = (*Mux)(nil)

// NewMux 创建空的分发器
func NewMux() *Mux {
	return &Mux{}
}

// Handle 注册精确路径
func (m *Mux) Handle(method, path string, h HandlerFunc) *Mux {
	m.routes = append(m.routes, route{method: method, pattern: path, handler: h})
	return m
}

// HandlePrefix 注册路径前缀
func (m *Mux) HandlePrefix(method, prefix string, h HandlerFunc) *Mux {
	m.routes = append(m.routes, route{method: method, pattern: prefix, prefix: true, handler: h})
	return m
}

// Route 实现 http1.Router
func (m *Mux) Route(ctx context.Context, req *http1.Request, resp *http1.Response) error {
	path := req.Path()
	var allowed []string
	for _, r := range m.routes {
		if !r.matches(path) {
			continue
		}
		if r.method == req.Method {
			return r.handler(ctx, req, resp)
		}
		if !slices.Contains(allowed, r.method) {
			allowed = append(allowed, r.method)
		}
	}

	if len(allowed) > 0 {
		http1.ErrorResponse(resp, http1.StatusMethodNotAllowed)
		resp.SetHeader("Allow", strings.Join(allowed, ", "))
		return nil
	}
	http1.ErrorResponse(resp, http1.StatusNotFound)
	return nil
}
