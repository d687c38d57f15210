package http1

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/h1d/internal/header"
)

// Response 由路由填充的响应。Content-Length 始终等于 len(Body)，
// 调用方设置的 Content-Length 与 Connection 头部在序列化时被丢弃。
type Response struct {
	StatusCode int
	// Reason 为空时从状态表查找
	Reason string
	Header *header.Store
	Body   []byte
}

// NewResponse 返回 200 空响应
func NewResponse() *Response {
	return &Response{StatusCode: StatusOK, Header: header.New()}
}

// SetHeader 替换同名头部
func (r *Response) SetHeader(name, value string) {
	r.Header.Delete(name)
	r.Header.Insert(name, value)
}

// SetBody 设置正文
func (r *Response) SetBody(b []byte) {
	r.Body = b
}

// SetText 设置状态码与纯文本正文
func (r *Response) SetText(status int, text string) {
	r.StatusCode = status
	r.SetHeader("Content-Type", "text/plain")
	r.Body = []byte(text)
}

// SetJSON 设置状态码与 JSON 正文
func (r *Response) SetJSON(status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json body: %w", err)
	}
	r.StatusCode = status
	r.SetHeader("Content-Type", "application/json")
	r.Body = body
	return nil
}

// Reset 恢复为 200 空响应，头部存储被清空复用
func (r *Response) Reset() {
	r.StatusCode = StatusOK
	r.Reason = ""
	if r.Header == nil {
		r.Header = header.New()
	} else {
		r.Header.Destroy(nil)
	}
	r.Body = nil
}

// ErrorResponse 将 r 重置为引擎自身发出的最小错误响应，status 须在状态表中
func ErrorResponse(r *Response, status int) {
	r.Reset()
	text, _ := StatusText(status)
	r.SetText(status, text+"\n")
}
