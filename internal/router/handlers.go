package router

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/BaSui01/h1d/internal/ctxkeys"
	"github.com/BaSui01/h1d/internal/http1"
)

// Root 返回 200 空响应
func Root(_ context.Context, _ *http1.Request, resp *http1.Response) error {
	resp.StatusCode = http1.StatusOK
	return nil
}

// Echo 把 /echo/ 之后的路径原样作为纯文本返回
func Echo(_ context.Context, req *http1.Request, resp *http1.Response) error {
	resp.SetText(http1.StatusOK, strings.TrimPrefix(req.Path(), "/echo/"))
	return nil
}

// EchoBody 原样返回请求正文，仅接受 text/plain 与 application/json
func EchoBody(_ context.Context, req *http1.Request, resp *http1.Response) error {
	ct, _ := req.Header.Lookup("content-type")
	mediaType, _, _ := strings.Cut(ct, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch mediaType {
	case "text/plain", "application/json":
	default:
		http1.ErrorResponse(resp, http1.StatusUnsupportedMediaType)
		return nil
	}
	resp.StatusCode = http1.StatusOK
	resp.SetHeader("Content-Type", ct)
	resp.SetBody(req.Body)
	return nil
}

// UserAgent 返回请求的 User-Agent 头部
func UserAgent(_ context.Context, req *http1.Request, resp *http1.Response) error {
	ua, _ := req.Header.Lookup("user-agent")
	resp.SetText(http1.StatusOK, ua)
	return nil
}

// HealthResponse /health 响应体
type HealthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime_seconds"`
	ConnID    string  `json:"conn_id,omitempty"`
	RequestNo int     `json:"request_seq,omitempty"`
}

// Health 返回进程存活状态与运行时长
func Health(started time.Time) HandlerFunc {
	return func(ctx context.Context, _ *http1.Request, resp *http1.Response) error {
		body := HealthResponse{
			Status: "ok",
			Uptime: time.Since(started).Seconds(),
		}
		body.ConnID, _ = ctxkeys.ConnID(ctx)
		body.RequestNo, _ = ctxkeys.RequestSeq(ctx)
		return resp.SetJSON(http1.StatusOK, body)
	}
}

// VersionResponse /version 响应体
type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
}

// Version 返回构建信息
func Version(version, buildTime, gitCommit string) HandlerFunc {
	return func(_ context.Context, _ *http1.Request, resp *http1.Response) error {
		return resp.SetJSON(http1.StatusOK, VersionResponse{
			Version:   version,
			BuildTime: buildTime,
			GitCommit: gitCommit,
			GoVersion: runtime.Version(),
		})
	}
}

// BuildInfo 版本信息
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Default 返回示例服务使用的完整路由表
func Default(info BuildInfo, started time.Time) *Mux {
	return NewMux().
		Handle("GET", "/", Root).
		HandlePrefix("GET", "/echo/", Echo).
		Handle("POST", "/echo", EchoBody).
		Handle("GET", "/user-agent", UserAgent).
		Handle("GET", "/health", Health(started)).
		Handle("GET", "/version", Version(info.Version, info.BuildTime, info.GitCommit))
}
