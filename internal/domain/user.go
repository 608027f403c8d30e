package domain

import "time"

// Plan enumerates subscription tiers.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanPro       Plan = "pro"
	PlanSupporter Plan = "supporter"
)

// User represents an authenticated account on the learning platform.
type User struct {
	ID         string
	GoogleSub  string
	Email      string
	Name       string
	AvatarURL  string
	Locale     string
	Plan       Plan
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Principal identifies the authenticated caller of a pipeline or gateway
// operation. It is always passed explicitly, never read from ambient state.
type Principal struct {
	UserID string
	Plan   Plan
	Locale string
}
