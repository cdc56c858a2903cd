package models

import "time"

// Fixed rate-limit window for one identifier (client address or merchant id)
type RateWindow struct {
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}

// Expired reports whether the window no longer covers now
func (w RateWindow) Expired(now time.Time, length time.Duration) bool {
	return w.WindowStart.IsZero() || now.Sub(w.WindowStart) >= length
}
