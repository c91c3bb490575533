package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AutoSaver saves a session on a fixed interval.
type AutoSaver struct {
	s        *Session
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// StartAutoSave starts saving every interval until Stop or Close. A tick
// that arrives while a save is running does nothing.
func (s *Session) StartAutoSave(interval time.Duration) *AutoSaver {
	a := &AutoSaver{
		s:        s,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.loop()
	s.logger.Debug("auto-save started", zap.Duration("interval", interval))
	return a
}

func (a *AutoSaver) loop() {
	defer close(a.done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.tick(context.Background())
		}
	}
}

// tick runs one auto-save.
func (a *AutoSaver) tick(ctx context.Context) {
	report, err := a.s.Save(ctx)
	switch {
	case err != nil:
		a.s.logger.Error("auto-save failed", zap.Error(err))
	case report.Skipped:
		a.s.logger.Debug("auto-save skipped, save in flight")
	case report.Saved > 0 || !report.OK():
		a.s.logger.Info("auto-saved",
			zap.Int("saved", report.Saved),
			zap.Int("failed", len(report.Failed)))
	}
}

// Stop stops the auto-saver and waits for a running save to finish.
func (a *AutoSaver) Stop() {
	a.once.Do(func() {
		close(a.stop)
	})
	<-a.done
}
