package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger 用 logrus 记录每个请求的状态码与耗时。
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			entry := logrus.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start).String(),
				"remote":   r.RemoteAddr,
			})
			if id := chimw.GetReqID(r.Context()); id != "" {
				entry = entry.WithField("request_id", id)
			}

			switch status := ww.Status(); {
			case status >= http.StatusInternalServerError:
				entry.Warn("request failed")
			case status == 0 || status == http.StatusSwitchingProtocols:
				// websocket 连接在关闭时才返回
				entry.Debug("connection closed")
			default:
				entry.Info("request handled")
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
