package domain

import (
	"strings"
	"time"
)

// Tier is a subscription tier
type Tier string

const (
	TierTrial    Tier = "trial"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// DefaultDailyLimit is the trial question quota per UTC day
const DefaultDailyLimit = 15

// ParseTier normalizes a stored tier name. Unknown or empty values resolve to trial.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierStandard:
		return TierStandard
	case TierPremium:
		return TierPremium
	default:
		return TierTrial
	}
}

// Rank orders tiers from most to least restricted
func (t Tier) Rank() int {
	switch t {
	case TierStandard:
		return 1
	case TierPremium:
		return 2
	default:
		return 0
	}
}

// UsagePolicy defines who is metered and how much
type UsagePolicy struct {
	DailyLimit int
	// UnlimitedFrom is the lowest tier that bypasses the quota
	UnlimitedFrom Tier
}

// DefaultUsagePolicy returns 15 questions a day for trial, standard and above unlimited
func DefaultUsagePolicy() UsagePolicy {
	return UsagePolicy{
		DailyLimit:    DefaultDailyLimit,
		UnlimitedFrom: TierStandard,
	}
}

// Unlimited reports whether tier bypasses the quota
func (p UsagePolicy) Unlimited(t Tier) bool {
	return t.Rank() >= p.UnlimitedFrom.Rank()
}

// UsageWindow is a half-open UTC calendar day [Start, End)
type UsageWindow struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the UTC day containing now
func DayWindow(now time.Time) UsageWindow {
	u := now.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return UsageWindow{Start: start, End: start.AddDate(0, 0, 1)}
}

// Key returns the window's date as YYYY-MM-DD
func (w UsageWindow) Key() string {
	return w.Start.Format("2006-01-02")
}

// Contains reports whether t falls inside the window
func (w UsageWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// UsageDecision is the outcome of a quota check
type UsageDecision struct {
	Allowed   bool
	Unlimited bool
	Tier      Tier
	Limit     int
	Used      int
	ResetAt   time.Time
	Window    UsageWindow
}

// Err returns a *RateLimitError for a rejected decision, nil otherwise
func (d UsageDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return &RateLimitError{Limit: d.Limit, Used: d.Used, ResetAt: d.ResetAt}
}

// UsageStatus summarizes a user's quota for display
type UsageStatus struct {
	Tier      Tier      `json:"tier"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	ResetAt   time.Time `json:"resetAt"`
}
