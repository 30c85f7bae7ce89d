// Package notify delivers fire-and-forget event notifications. Failures are
// logged and never propagated into the decision path.
package notify

import (
	"laddr/internal/logger"
)

// TextNotifier is intentionally small so components can depend on it without
// importing concrete transports.
type TextNotifier interface {
	SendText(text string) error
}

// LogNotifier writes notifications to the application log. Used when
// Telegram is not configured and as the replay default.
type LogNotifier struct{}

func (LogNotifier) SendText(text string) error {
	logger.Infof("notify: %s", text)
	return nil
}

// Composite fans a message out to several notifiers.
type Composite struct {
	targets []TextNotifier
}

func NewComposite(targets ...TextNotifier) *Composite {
	return &Composite{targets: targets}
}

func (c *Composite) SendText(text string) error {
	var lastErr error
	for _, t := range c.targets {
		if err := t.SendText(text); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Service wraps a TextNotifier with asynchronous delivery so the caller
// never blocks on a slow transport.
type Service struct {
	sink TextNotifier
}

func NewService(sink TextNotifier) *Service {
	if sink == nil {
		sink = LogNotifier{}
	}
	return &Service{sink: sink}
}

func (s *Service) send(text string) {
	go func() {
		if err := s.sink.SendText(text); err != nil {
			logger.Warnf("notify: delivery failed: %v", err)
		}
	}()
}

func (s *Service) TradeExecuted(ev TradeEvent) { s.send(ev.Render()) }

func (s *Service) DriftCorrected(ev DriftEvent) { s.send(ev.Render()) }

func (s *Service) Alert(title string, lines ...string) {
	s.send(renderAlert(title, lines))
}
