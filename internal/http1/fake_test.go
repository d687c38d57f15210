package http1

import (
	"bytes"
	"net"
	"time"

	"github.com/BaSui01/h1d/internal/transport"
)

// fakeTransport 按预设分片返回数据的内存传输
type fakeTransport struct {
	chunks [][]byte
	// blockEvery 每个分片之前先返回一次 ErrWouldBlock
	blockEvery bool
	blocked    bool
	// readErr 分片耗尽后的返回值，默认 transport.ErrClosed
	readErr error
	reads   int

	out         bytes.Buffer
	maxWrite    int
	writeBlocks int
	writeErr    error
	closed      int
}

func newFake(chunks ...[]byte) *fakeTransport {
	return &fakeTransport{chunks: chunks}
}

// split 把 s 切成不超过 size 字节的分片
func split(s string, size int) [][]byte {
	var out [][]byte
	for len(s) > 0 {
		n := min(size, len(s))
		out = append(out, []byte(s[:n]))
		s = s[n:]
	}
	return out
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.reads++
	if len(f.chunks) == 0 {
		if f.readErr == nil {
			return 0, transport.ErrClosed
		}
		if f.readErr == transport.ErrWouldBlock {
			time.Sleep(time.Millisecond)
		}
		return 0, f.readErr
	}
	if f.blockEvery && !f.blocked {
		f.blocked = true
		return 0, transport.ErrWouldBlock
	}
	f.blocked = false
	n := copy(p, f.chunks[0])
	f.chunks[0] = f.chunks[0][n:]
	if len(f.chunks[0]) == 0 {
		f.chunks = f.chunks[1:]
	}
	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	if f.writeBlocks > 0 {
		f.writeBlocks--
		return 0, transport.ErrWouldBlock
	}
	n := len(p)
	if f.maxWrite > 0 && n > f.maxWrite {
		n = f.maxWrite
	}
	f.out.Write(p[:n])
	return n, nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	if f.closed > 1 {
		return transport.ErrAlreadyClosed
	}
	return nil
}

func (f *fakeTransport) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}
