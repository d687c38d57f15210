// Package tlsutil 提供集中式 TLS 配置：从 PEM 文件加载共享的服务端配置、
// 生成自签名证书，并为健康检查客户端提供加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
