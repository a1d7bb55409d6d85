package breaker

import (
	"time"

	"github.com/sony/gobreaker"

	applog "haptix/internal/platform/log"
)

// Config 熔断配置
type Config struct {
	Name         string
	MaxRequests  uint32        // 半开状态允许通过的请求数
	Interval     time.Duration // 闭合状态下统计窗口
	Timeout      time.Duration // 打开后多久进入半开
	MinRequests  uint32        // 达到该请求数后才评估失败率
	FailureRatio float64
}

// DefaultConfig 默认熔断配置
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// New 创建熔断器。状态变化写日志
func New(cfg Config) *gobreaker.CircuitBreaker {
	logger := applog.With("component", "breaker", "breaker", cfg.Name)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("[Breaker] state changed", "from", from.String(), "to", to.String())
		},
	})
}

// Do 在熔断器保护下执行 fn
func Do(cb *gobreaker.CircuitBreaker, fn func() error) error {
	if cb == nil {
		return fn()
	}
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}
