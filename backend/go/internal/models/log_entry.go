package models

// RequestInfo 存储了关于 HTTP 请求的上下文信息，由请求日志中间件填充。
type RequestInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
	StatusCode int    `json:"status_code"`
	LatencyMs  int64  `json:"latency_ms"`
}

// ErrorInfo 存储了关于错误的结构化信息。
type ErrorInfo struct {
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`        // 错误类型，例如 "vector_store", "relational"
	StatusCode int    `json:"status_code,omitempty"` // 相关的HTTP状态码
}
