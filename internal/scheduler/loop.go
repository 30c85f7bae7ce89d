package scheduler

import (
	"context"
	"time"

	"laddr/internal/logger"
)

// IntervalLoop runs a task on a fixed period, independent of any other
// cadence in the process. The first run happens after one interval unless
// RunImmediately is set.
type IntervalLoop struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool
}

func (l IntervalLoop) Start(ctx context.Context, task func(context.Context)) {
	if task == nil {
		logger.Warnf("IntervalLoop %s: task is nil, exit", l.Name)
		return
	}
	if l.Interval <= 0 {
		logger.Warnf("IntervalLoop %s: invalid interval=%s, exit", l.Name, l.Interval)
		return
	}
	logger.Infof("IntervalLoop %s: started interval=%s run_immediately=%v", l.Name, l.Interval, l.RunImmediately)

	if l.RunImmediately {
		task(ctx)
	}

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("IntervalLoop %s: ctx done, exit", l.Name)
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}
