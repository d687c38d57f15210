// Package http1 实现 HTTP/1.1 线协议：请求读取状态机、响应序列化
// 以及引擎与业务层之间的路由契约。
package http1

import (
	"strings"

	"github.com/BaSui01/h1d/internal/header"
)

// Request 一个已完整读取的请求，由读取器返回后不再修改
type Request struct {
	Method  string
	Target  string
	Version string
	Header  *header.Store
	Body    []byte

	// ContentLength 声明的正文长度；GET 为 0
	ContentLength int64

	// Close 客户端要求在本次响应后关闭连接
	Close bool
}

// Path 返回 Target 中 '?' 之前的部分
func (r *Request) Path() string {
	if i := strings.IndexByte(r.Target, '?'); i >= 0 {
		return r.Target[:i]
	}
	return r.Target
}

// Query 返回 Target 中 '?' 之后的部分（不含 '?'）
func (r *Request) Query() string {
	if i := strings.IndexByte(r.Target, '?'); i >= 0 {
		return r.Target[i+1:]
	}
	return ""
}

// Release 释放请求持有的头部与正文
func (r *Request) Release() {
	if r == nil {
		return
	}
	r.Header.Destroy(nil)
	r.Body = nil
}
