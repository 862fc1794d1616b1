package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options 控制日志级别与输出格式。
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// Setup 配置全局 logrus 实例。Format 支持 text 与 json。
func Setup(opts Options) error {
	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(parsed)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	logrus.SetOutput(out)
	return nil
}
