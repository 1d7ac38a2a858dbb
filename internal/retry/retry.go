package retry

import (
	"context"
	"time"

	xerrors "OpenAgent-Chain/internal/errors"
)

// Policy 描述一个有界重试策略。决策解析循环使用
// {MaxAttempts: 2, Backoff: 0}，即最多尝试两次、失败不等待。
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do 反复执行 op 直到成功、错误不可重试或尝试次数耗尽。
// 是否可重试由统一错误码的属性决定，最后一次的错误原样返回。
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = op(ctx)
		if last == nil {
			return nil
		}
		if !xerrors.RetryableError(last) {
			return last
		}
		if attempt == attempts {
			break
		}

		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return last
}
