package domain

import "time"

type Subscription struct {
	ID                  int64              `db:"id"`
	UserID              int64              `db:"user_id"`
	Items               []SubscriptionItem `db:"items"`
	Active              bool               `db:"active"`
	StartDate           time.Time          `db:"start_date"`
	EndDate             *time.Time         `db:"end_date"`
	RefillFrequencyDays int32              `db:"refill_frequency_days"`
	NextRefillDate      time.Time          `db:"next_refill_date"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Version int64 `db:"version"`
}

type SubscriptionItem struct {
	SubscriptionID int64 `db:"subscription_id"`
	ProductID      int64 `db:"product_id"`
	Quantity       int32 `db:"quantity"`
}

func (s *Subscription) IsEligibleForRefill(now time.Time) bool {
	return s.Active && !now.Before(s.NextRefillDate)
}

// ScheduleNextRefill advances the refill date by one frequency cycle.
// Inactive subscriptions are never rescheduled.
func (s *Subscription) ScheduleNextRefill(now time.Time) {
	if s.Active {
		s.NextRefillDate = now.AddDate(0, 0, int(s.RefillFrequencyDays))
	}
}

func (s *Subscription) Deactivate(now time.Time) {
	s.Active = false
	s.EndDate = &now
}
