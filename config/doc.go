// Package config 提供 h1d 的配置管理功能。
//
// 配置来源依次为默认值、YAML 文件与环境变量（默认前缀 H1D_，可由 Loader.WithEnvPrefix 更改），
// 例如 H1D_SERVER_PORT、H1D_TLS_ENABLED。所有参数在启动时
// 加载一次，运行期间保持不变。
package config
