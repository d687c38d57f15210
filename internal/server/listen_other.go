//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package server

import "net"

// listenTCP 在不支持 x/sys/unix 的平台上退化为 net.Listen，backlog 由系统决定
func listenTCP(addr string, _ int) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
