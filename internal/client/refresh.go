package client

import "time"

// RefreshDecision is the outcome of one housekeeping check.
type RefreshDecision int

const (
	// DecisionWait: the access token has plenty of life left.
	DecisionWait RefreshDecision = iota
	// DecisionRefresh: the token is close to expiry and the user is active;
	// exchange it now so in-flight work is not interrupted.
	DecisionRefresh
	// DecisionExpired: the token is already dead; clear state and force
	// re-authentication.
	DecisionExpired
)

// DefaultRefreshLead is how far before expiry a refresh is triggered.
const DefaultRefreshLead = 5 * time.Minute

// DefaultActivityWindow is how recent user activity must be for a proactive
// refresh; an idle session is allowed to lapse.
const DefaultActivityWindow = 15 * time.Minute

// Decide is a pure function of the clock, the access-token expiry and the
// last recorded user activity.
func Decide(now, expiry, lastActivity time.Time, lead, activityWindow time.Duration) RefreshDecision {
	if lead <= 0 {
		lead = DefaultRefreshLead
	}
	if activityWindow <= 0 {
		activityWindow = DefaultActivityWindow
	}
	if expiry.IsZero() || !expiry.After(now) {
		return DecisionExpired
	}
	if expiry.Sub(now) > lead {
		return DecisionWait
	}
	if lastActivity.IsZero() || now.Sub(lastActivity) > activityWindow {
		return DecisionWait
	}
	return DecisionRefresh
}

// scheduler runs the housekeeping check on a fixed interval until stopped.
type scheduler struct {
	interval time.Duration
	tick     func()
	stop     chan struct{}
	done     chan struct{}
}

func newScheduler(interval time.Duration, tick func()) *scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &scheduler{
		interval: interval,
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *scheduler) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}
