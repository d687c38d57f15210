package http1

// 支持的状态码
const (
	StatusContinue                = 100
	StatusOK                      = 200
	StatusBadRequest              = 400
	StatusNotFound                = 404
	StatusMethodNotAllowed        = 405
	StatusLengthRequired          = 411
	StatusPayloadTooLarge         = 413
	StatusUnsupportedMediaType    = 415
	StatusInternalServerError     = 500
	StatusHTTPVersionNotSupported = 505
)

var statusText = map[int]string{
	StatusContinue:                "Continue",
	StatusOK:                      "OK",
	StatusBadRequest:              "Bad Request",
	StatusNotFound:                "Not Found",
	StatusMethodNotAllowed:        "Method Not Allowed",
	StatusLengthRequired:          "Length Required",
	StatusPayloadTooLarge:         "Payload Too Large",
	StatusUnsupportedMediaType:    "Unsupported Media Type",
	StatusInternalServerError:     "Internal Server Error",
	StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

// StatusText 返回状态码对应的原因短语；不在表中时 ok 为 false
func StatusText(code int) (string, bool) {
	text, ok := statusText[code]
	return text, ok
}
