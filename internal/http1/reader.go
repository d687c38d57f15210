package http1

import (
	"bytes"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/h1d/internal/header"
	"github.com/BaSui01/h1d/internal/pool"
	"github.com/BaSui01/h1d/internal/transport"
)

// State 请求读取状态，按顺序推进且不回退
type State int

const (
	StateRequestLine State = iota
	StateHeaders
	StateBody
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRequestLine:
		return "READ_REQUEST_LINE"
	case StateHeaders:
		return "READ_HEADERS"
	case StateBody:
		return "READ_BODY"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// DefaultMaxHeaderBytes 请求行与头部块共享的接收缓冲区大小
const DefaultMaxHeaderBytes = pool.RecvBufferSize

// ReaderOptions 读取器限制
type ReaderOptions struct {
	// MaxHeaderBytes 接收缓冲区大小，请求行或头部块超出时返回 400
	MaxHeaderBytes int
	// MaxBodyBytes 正文上限，超出返回 413；0 表示不限制
	MaxBodyBytes int64
	// IdleTimeout 等待新请求首字节的最长时间；0 表示不限制
	IdleTimeout time.Duration
	// HeaderTimeout 从请求首字节到头部块结束的最长时间；0 表示不限制
	HeaderTimeout time.Duration
}

// bodyChunkSize 正文缓冲区按实际到达的数据增长，单次扩容不超过该值的倍增
const bodyChunkSize = 64 << 10

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")

	errBufferFull = errors.New("receive buffer full")
)

// Reader 单个连接的请求读取器，不可跨连接复用，也不可并发调用
type Reader struct {
	t     transport.Transport
	stop  transport.Stopper
	opts  ReaderOptions
	state State

	pooled *[]byte
	buf    []byte
	start  int // 未消费数据起点
	end    int // 已读入数据终点

	headerDeadline time.Time
}

// NewReader 创建读取器。接收缓冲区取自池，Release 时归还。
func NewReader(t transport.Transport, stop transport.Stopper, opts ReaderOptions) *Reader {
	if opts.MaxHeaderBytes <= 0 {
		opts.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	r := &Reader{t: t, stop: stop, opts: opts}
	if opts.MaxHeaderBytes == pool.RecvBufferSize {
		r.pooled = pool.RecvBufferPool.Get()
		r.buf = *r.pooled
	} else {
		r.buf = make([]byte, opts.MaxHeaderBytes)
	}
	return r
}

// State 返回当前（或最近一次）读取所处的状态
func (r *Reader) State() State {
	return r.state
}

// Buffered 返回已读入但尚未消费的字节数（属于下一个请求）
func (r *Reader) Buffered() int {
	return r.end - r.start
}

// Release 归还接收缓冲区，之后读取器不可再用
func (r *Reader) Release() {
	if r.pooled != nil {
		pool.RecvBufferPool.Put(r.pooled)
		r.pooled = nil
	}
	r.buf = nil
	r.start, r.end = 0, 0
}

// ReadRequest 读取一个完整请求。
//
// 错误分类：
//   - *ProtocolError：应发送对应状态码的响应后关闭连接
//   - ErrPeerClosed / ErrIdleTimeout：静默关闭
//   - transport.ErrShutdown 及其他 I/O 错误：不发送响应直接关闭
func (r *Reader) ReadRequest() (*Request, error) {
	r.state = StateRequestLine
	r.headerDeadline = time.Time{}
	line, err := r.readRequestLine()
	if err != nil {
		return nil, err
	}
	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}
	req := &Request{
		Method:  method,
		Target:  target,
		Version: version,
		Header:  header.New(),
	}

	r.state = StateHeaders
	if err := r.readHeaders(req.Header); err != nil {
		return nil, err
	}
	if _, ok := req.Header.Lookup("transfer-encoding"); ok {
		return nil, protocolError(StatusBadRequest, "transfer-encoding not supported")
	}
	closeConn, err := persistence(req.Header)
	if err != nil {
		return nil, err
	}
	req.Close = closeConn

	if req.Method == "GET" {
		r.state = StateDone
		return req, nil
	}

	r.state = StateBody
	n, err := r.contentLength(req.Header)
	if err != nil {
		return nil, err
	}
	body, err := r.readBody(n)
	if err != nil {
		return nil, err
	}
	req.ContentLength = n
	req.Body = body
	r.state = StateDone
	return req, nil
}

func (r *Reader) readRequestLine() ([]byte, error) {
	for {
		avail := r.buf[r.start:r.end]
		// 请求首字节到达后开始计算头部超时
		if len(avail) > 0 && r.headerDeadline.IsZero() && r.opts.HeaderTimeout > 0 {
			r.headerDeadline = time.Now().Add(r.opts.HeaderTimeout)
		}
		if i := bytes.Index(avail, crlf); i >= 0 {
			r.start += i + 2
			return avail[:i], nil
		}
		// 行内出现 NUL 时无需等待行结束
		if bytes.IndexByte(avail, 0) >= 0 {
			return nil, protocolError(StatusBadRequest, "NUL byte in request line")
		}

		empty := r.start == r.end
		if err := r.fill(empty); err != nil {
			switch {
			case errors.Is(err, errBufferFull):
				return nil, protocolError(StatusBadRequest, "request line too large")
			case errors.Is(err, transport.ErrClosed) && empty:
				return nil, ErrPeerClosed
			case errors.Is(err, transport.ErrClosed):
				return nil, protocolError(StatusBadRequest, "incomplete request line")
			default:
				return nil, err
			}
		}
	}
}

func (r *Reader) readHeaders(h *header.Store) error {
	for {
		n, err := parseHeaderBlock(r.buf[r.start:r.end], h)
		if err != nil {
			return err
		}
		if n > 0 {
			r.start += n
			return nil
		}
		if err := r.fill(false); err != nil {
			switch {
			case errors.Is(err, errBufferFull):
				return protocolError(StatusBadRequest, "headers too large")
			case errors.Is(err, transport.ErrClosed):
				return protocolError(StatusBadRequest, "incomplete header block")
			default:
				return err
			}
		}
	}
}

func (r *Reader) contentLength(h *header.Store) (int64, error) {
	v, ok := h.Lookup("content-length")
	if !ok {
		return 0, protocolError(StatusBadRequest, "content-length required")
	}
	n, err := strconv.ParseUint(v, 10, 63)
	if err != nil {
		return 0, protocolError(StatusBadRequest, "invalid content-length")
	}
	if r.opts.MaxBodyBytes > 0 && int64(n) > r.opts.MaxBodyBytes {
		return 0, protocolError(StatusPayloadTooLarge, "body exceeds limit")
	}
	return int64(n), nil
}

func (r *Reader) readBody(n int64) ([]byte, error) {
	// 不按声明长度预分配：Content-Length 由客户端控制
	body := make([]byte, 0, min(n, bodyChunkSize))
	take := int(min(n, int64(r.end-r.start)))
	body = append(body, r.buf[r.start:r.start+take]...)
	r.start += take

	for int64(len(body)) < n {
		if len(body) == cap(body) {
			grow := min(n-int64(len(body)), int64(max(len(body), bodyChunkSize)))
			body = slices.Grow(body, int(grow))
		}
		want := int(min(n-int64(len(body)), int64(cap(body)-len(body))))
		m, err := r.t.Read(body[len(body) : len(body)+want])
		body = body[:len(body)+m]
		if err == nil || m > 0 {
			continue
		}
		switch {
		case errors.Is(err, transport.ErrWouldBlock):
			if r.stop.IsSet() {
				return nil, transport.ErrShutdown
			}
		case errors.Is(err, transport.ErrClosed):
			return nil, protocolError(StatusBadRequest, "truncated body")
		case errors.Is(err, transport.ErrShutdown):
			return nil, err
		default:
			return nil, &ProtocolError{Status: StatusInternalServerError, Reason: "body read failed", Err: err}
		}
	}
	return body, nil
}

// fill 向缓冲区追加数据，直到至少读到一个字节。
// idle 为 true 表示正在等待新请求的首字节，受 IdleTimeout 约束。
func (r *Reader) fill(idle bool) error {
	if r.start > 0 {
		r.end = copy(r.buf, r.buf[r.start:r.end])
		r.start = 0
	}
	if r.end == len(r.buf) {
		return errBufferFull
	}

	var waitStart time.Time
	for {
		n, err := r.t.Read(r.buf[r.end:])
		r.end += n
		if n > 0 {
			return nil
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, transport.ErrWouldBlock) {
			return err
		}
		if r.stop.IsSet() {
			return transport.ErrShutdown
		}
		if !idle && !r.headerDeadline.IsZero() && time.Now().After(r.headerDeadline) {
			return ErrHeaderTimeout
		}
		if idle && r.opts.IdleTimeout > 0 {
			if waitStart.IsZero() {
				waitStart = time.Now()
			} else if time.Since(waitStart) >= r.opts.IdleTimeout {
				return ErrIdleTimeout
			}
		}
	}
}

// parseRequestLine 解析 METHOD SP TARGET SP HTTP/VERSION
func parseRequestLine(line []byte) (method, target, version string, err error) {
	if bytes.IndexByte(line, 0) >= 0 {
		return "", "", "", protocolError(StatusBadRequest, "NUL byte in request line")
	}
	s := string(line)
	sp1 := strings.IndexByte(s, ' ')
	if sp1 < 0 {
		return "", "", "", protocolError(StatusBadRequest, "malformed request line")
	}
	sp2 := strings.IndexByte(s[sp1+1:], ' ')
	if sp2 < 0 {
		return "", "", "", protocolError(StatusBadRequest, "malformed request line")
	}
	sp2 += sp1 + 1
	method, target, proto := s[:sp1], s[sp1+1:sp2], s[sp2+1:]

	if !isMethod(method) {
		return "", "", "", protocolError(StatusBadRequest, "invalid method")
	}
	if !isOriginForm(target) {
		return "", "", "", protocolError(StatusBadRequest, "invalid request target")
	}
	version, ok := strings.CutPrefix(proto, "HTTP/")
	if !ok || !isVersion(version) {
		return "", "", "", protocolError(StatusBadRequest, "invalid protocol version")
	}
	if version != "1.1" {
		return "", "", "", protocolError(StatusHTTPVersionNotSupported, "unsupported version "+version)
	}
	return method, target, version, nil
}

// parseHeaderBlock 解析 buf 开头的完整头部块。
// 块不完整时返回 0；仅有 CRLF 的空块消耗 2 字节。
func parseHeaderBlock(buf []byte, h *header.Store) (int, error) {
	if len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n' {
		return 2, nil
	}
	end := bytes.Index(buf, crlfcrlf)
	if end < 0 {
		return 0, nil
	}
	block := buf[:end]
	for len(block) > 0 {
		line := block
		if i := bytes.Index(block, crlf); i >= 0 {
			line, block = block[:i], block[i+2:]
		} else {
			block = nil
		}
		name, value, err := parseHeaderLine(line)
		if err != nil {
			return 0, err
		}
		h.Insert(name, value)
	}
	return end + 4, nil
}

// parseHeaderLine 解析 name ":" OWS value OWS，名称折叠为小写
func parseHeaderLine(line []byte) (string, string, error) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", protocolError(StatusBadRequest, "malformed header line")
	}
	name := line[:colon]
	for _, c := range name {
		if !isTokenChar(c) {
			return "", "", protocolError(StatusBadRequest, "invalid header name")
		}
	}
	value := bytes.Trim(line[colon+1:], " \t")
	for _, c := range value {
		if c == 0 || c == '\r' || c == '\n' {
			return "", "", protocolError(StatusBadRequest, "invalid header value")
		}
	}
	return header.Fold(string(name)), string(value), nil
}

// persistence 根据 connection 头部判断是否在响应后关闭
func persistence(h *header.Store) (closeConn bool, err error) {
	v, ok := h.Lookup("connection")
	if !ok {
		return false, nil
	}
	switch {
	case strings.EqualFold(v, "keep-alive"):
		return false, nil
	case strings.EqualFold(v, "close"):
		return true, nil
	default:
		return false, protocolError(StatusBadRequest, "invalid connection header")
	}
}

// isMethod method = token
func isMethod(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isOriginForm(s string) bool {
	if s == "" || s[0] != '/' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

func isVersion(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != '.' && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// isTokenChar RFC 9110 tchar
func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
