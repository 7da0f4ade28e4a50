package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestClassifyNilExpiry(t *testing.T) {
	assert.Nil(t, Classify(nil, date(2026, time.March, 1)))
}

func TestClassifyBoundaries(t *testing.T) {
	today := date(2026, time.March, 1)

	tests := []struct {
		name      string
		expiry    time.Time
		wantState State
		wantDays  int
		wantUntil int
		wantColor string
	}{
		{
			name:      "expired yesterday",
			expiry:    today.AddDate(0, 0, -1),
			wantState: StateExpired,
			wantDays:  1,
			wantUntil: -1,
			wantColor: "red",
		},
		{
			name:      "expires today",
			expiry:    today,
			wantState: StateExpiringSoon,
			wantDays:  0,
			wantUntil: 0,
			wantColor: "amber",
		},
		{
			name:      "expires in 30 days",
			expiry:    today.AddDate(0, 0, 30),
			wantState: StateExpiringSoon,
			wantDays:  30,
			wantUntil: 30,
			wantColor: "amber",
		},
		{
			name:      "expires in 31 days",
			expiry:    today.AddDate(0, 0, 31),
			wantState: StateValid,
			wantDays:  31,
			wantUntil: 31,
			wantColor: "green",
		},
		{
			name:      "long expired",
			expiry:    today.AddDate(0, 0, -45),
			wantState: StateExpired,
			wantDays:  45,
			wantUntil: -45,
			wantColor: "red",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Classify(datePtr(tt.expiry), today)
			require.NotNil(t, st)
			assert.Equal(t, tt.wantState, st.State)
			assert.Equal(t, tt.wantDays, st.Days)
			assert.Equal(t, tt.wantUntil, st.DaysUntil)
			assert.Equal(t, tt.wantColor, st.Color)
		})
	}
}

// The wall-clock hour of either date must not shift the day delta: an
// expiry at 00:10 tomorrow is one day away even when checked at 23:30
// tonight.
func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2026, time.March, 1, 23, 30, 0, 0, time.UTC)
	expiry := time.Date(2026, time.March, 2, 0, 10, 0, 0, time.UTC)

	st := Classify(&expiry, today)
	require.NotNil(t, st)
	assert.Equal(t, StateExpiringSoon, st.State)
	assert.Equal(t, 1, st.DaysUntil)

	// And the reverse: late-evening expiry earlier today is not "expired"
	// until tomorrow.
	sameDay := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	st = Classify(&sameDay, today)
	require.NotNil(t, st)
	assert.Equal(t, StateExpiringSoon, st.State)
	assert.Equal(t, 0, st.DaysUntil)
}

func TestClassifyDeterministic(t *testing.T) {
	today := date(2026, time.March, 1)
	expiry := datePtr(today.AddDate(0, 0, 12))

	first := Classify(expiry, today)
	second := Classify(expiry, today)
	assert.Equal(t, first, second)
}
