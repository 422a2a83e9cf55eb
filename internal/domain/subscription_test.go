package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_IsEligibleForRefill(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	sub := Subscription{Active: true, NextRefillDate: now}
	assert.True(t, sub.IsEligibleForRefill(now), "due exactly now")
	assert.True(t, sub.IsEligibleForRefill(now.Add(time.Hour)), "past due")
	assert.False(t, sub.IsEligibleForRefill(now.Add(-time.Hour)), "not due yet")

	sub.Active = false
	assert.False(t, sub.IsEligibleForRefill(now.Add(time.Hour)), "inactive never eligible")
}

func TestSubscription_ScheduleNextRefill(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

	sub := Subscription{
		Active:              true,
		RefillFrequencyDays: 30,
		NextRefillDate:      now.AddDate(0, 0, -1),
	}

	sub.ScheduleNextRefill(now)
	assert.Equal(t, now.AddDate(0, 0, 30), sub.NextRefillDate)
}

func TestSubscription_ScheduleNextRefill_Inactive(t *testing.T) {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	sub := Subscription{
		Active:              false,
		RefillFrequencyDays: 7,
		NextRefillDate:      due,
	}

	sub.ScheduleNextRefill(due.AddDate(0, 0, 10))
	assert.Equal(t, due, sub.NextRefillDate)
}

func TestSubscription_Deactivate(t *testing.T) {
	now := time.Now()

	sub := Subscription{Active: true}
	sub.Deactivate(now)

	assert.False(t, sub.Active)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, now, *sub.EndDate)
}
