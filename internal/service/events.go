package service

import (
	"time"
)

// RunEvent 실행 완료 알림
type RunEvent struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	Expiries  int       `json:"expiries"`
	Quotes    int       `json:"quotes"`
	Changed   int       `json:"changed"`
}

const subscriberBuffer = 16

// Subscribe returns a channel of completed runs and a cancel func. Slow
// subscribers miss events rather than block runs.
func (s *Service) Subscribe() (<-chan RunEvent, func()) {
	ch := make(chan RunEvent, subscriberBuffer)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once bool
	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, ch)
		close(ch)
	}
	return ch, cancel
}

func (s *Service) publish(ev RunEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.WithField("run_id", ev.ID).Warn("subscriber full, event dropped")
		}
	}
}

// Subscribers counts open subscriptions.
func (s *Service) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}
