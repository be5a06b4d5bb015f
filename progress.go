package compress

// ProgressEvent reports session completion in [0, 1]. Delivered zero
// or more times per session, always ending with exactly one 1.0 event
// on success.
type ProgressEvent struct {
	SessionID string
	Progress  float64
}

// ProgressFunc receives progress events. Called from the pump
// goroutine; implementations should hand off quickly.
type ProgressFunc func(ProgressEvent)

// ProgressReporter derives a throttled, monotonic completion ratio
// from presentation timestamps. Reported values never decrease, and a
// degenerate zero-duration source suppresses intermediate reports and
// emits only the terminal 100%.
type ProgressReporter struct {
	sessionID   string
	totalMicros int64
	divider     int
	emit        ProgressFunc

	lastPercent int
}

// NewProgressReporter creates a reporter for one session. A divider of
// 0 reports every percent change; divider N reports only percents
// divisible by N. A nil emit func disables reporting.
func NewProgressReporter(sessionID string, totalMicros int64, divider int, emit ProgressFunc) *ProgressReporter {
	return &ProgressReporter{
		sessionID:   sessionID,
		totalMicros: totalMicros,
		divider:     divider,
		emit:        emit,
		lastPercent: -1,
	}
}

// Update observes the most recent presentation timestamp.
func (p *ProgressReporter) Update(ptsMicros int64) {
	if p.emit == nil || p.totalMicros <= 0 {
		return
	}

	ratio := float64(ptsMicros) / float64(p.totalMicros)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	percent := int(ratio * 100)
	if percent <= p.lastPercent {
		return
	}
	if p.divider > 0 && percent%p.divider != 0 {
		return
	}

	p.lastPercent = percent
	p.emit(ProgressEvent{SessionID: p.sessionID, Progress: float64(percent) / 100})
}

// Finish emits the terminal 100% report unless an Update already
// reached it. Called exactly once, on success only.
func (p *ProgressReporter) Finish() {
	if p.emit == nil || p.lastPercent >= 100 {
		return
	}
	p.lastPercent = 100
	p.emit(ProgressEvent{SessionID: p.sessionID, Progress: 1.0})
}
