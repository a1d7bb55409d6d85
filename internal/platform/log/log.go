package applog

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置。Output 为空时写 stdout
type Config struct {
	Level     string
	Format    string // console | json
	AddSource bool
	Output    io.Writer
}

type ctxKey struct{}

var current atomic.Pointer[zap.Logger]

// levels zap 与 slog 级别对照
var levels = map[string]struct {
	zap  zapcore.Level
	slog slog.Level
}{
	"debug":   {zapcore.DebugLevel, slog.LevelDebug},
	"info":    {zapcore.InfoLevel, slog.LevelInfo},
	"warn":    {zapcore.WarnLevel, slog.LevelWarn},
	"warning": {zapcore.WarnLevel, slog.LevelWarn},
	"error":   {zapcore.ErrorLevel, slog.LevelError},
}

// Init 安装全局 logger：zap 负责编码输出，slog 作为调用入口，标准库 log 也被重定向
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	z := newZap(cfg, out)
	current.Store(z)
	zap.ReplaceGlobals(z)

	handler := slogzap.Option{
		Level:     slogLevel(cfg.Level),
		Logger:    z,
		AddSource: cfg.AddSource,
	}.NewZapHandler()
	slog.SetDefault(slog.New(handler))

	log.SetFlags(0)
	log.SetOutput(out)
}

// InitDiscard 丢弃全部日志
func InitDiscard() {
	Init(Config{Level: "error", Output: io.Discard})
}

// Sync 刷新缓冲，退出前调用
func Sync() {
	if z := current.Load(); z != nil {
		_ = z.Sync()
	}
}

func newZap(cfg Config, out io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(enc)
	default:
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), ParseLevel(cfg.Level)), opts...)
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) zapcore.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l.zap
	}
	return zapcore.InfoLevel
}

func slogLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l.slog
	}
	return slog.LevelInfo
}

// With 返回带固定字段的 logger
func With(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}

// Component 组件 logger，日志带 component 字段
func Component(name string) *slog.Logger {
	return With("component", name)
}

// WithContext 把 logger 放进 context，会话 / 执行链路沿用其字段
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext 取 context 中的 logger，没有时返回默认 logger
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }

func Infof(format string, args ...any)  { slog.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { slog.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { slog.Error(fmt.Sprintf(format, args...)) }

// Fatalf 记录错误并以状态码 1 退出
func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	Sync()
	os.Exit(1)
}
