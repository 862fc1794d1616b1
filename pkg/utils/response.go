package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

// RespondError 发送错误响应。code 为机器可读的错误标识，可以为空。
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondErrorCode(w, status, "", message)
}

// RespondErrorCode 发送带错误码的错误响应
func RespondErrorCode(w http.ResponseWriter, status int, code, message string) {
	body := map[string]string{"error": message}
	if code != "" {
		body["code"] = code
	}
	RespondJSON(w, status, body)
}
