package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynsched/internal/shared"
)

func TestParse_Valid(t *testing.T) {
	exprs := []string{
		"* * * * *",
		"0 0 * * *",
		"*/15 9-18 * * MON-FRI",
		"0 0 1,15 * *",
		"30 0 0 * * *",
		"0 0 29 2 *",
		"@daily",
		"@hourly",
		"@every 90s",
		"CRON_TZ=UTC 0 12 * * *",
		"  0 0 * * *  ",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			s, err := Parse(expr)
			require.NoError(t, err)
			assert.False(t, s.IsZero())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"garbage", "invalid"},
		{"minute out of range", "60 * * * *"},
		{"hour out of range", "* 24 * * *"},
		{"too few fields", "* * * *"},
		{"too many fields", "1 2 3 4 5 6 7"},
		{"zero step", "*/0 * * * *"},
		{"reversed range", "5-3 * * * *"},
		{"february 30", "0 0 30 2 *"},
		{"april 31", "0 0 31 4 *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			require.Error(t, err)

			var invalid *InvalidScheduleError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.expr, invalid.Expr)
			assert.True(t, shared.IsValidation(err), "ошибка разбора должна классифицироваться как validation")
			assert.Equal(t, shared.KindValidation, shared.KindOf(err))
		})
	}
}

func TestParse_NeverFires(t *testing.T) {
	_, err := Parse("0 0 30 2 *")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNeverFires))
}

func TestNextFireAfter(t *testing.T) {
	tests := []struct {
		name string
		expr string
		from time.Time
		want time.Time
	}{
		{
			name: "daily midnight",
			expr: "0 0 * * *",
			from: time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC),
			want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exact instant is excluded",
			expr: "0 0 * * *",
			from: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "every minute",
			expr: "* * * * *",
			from: time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC),
			want: time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC),
		},
		{
			name: "seconds field",
			expr: "30 * * * * *",
			from: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC),
		},
		{
			name: "weekdays only",
			expr: "0 9 * * MON-FRI",
			from: time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC), // суббота
			want: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "leap day",
			expr: "0 0 29 2 *",
			from: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextFireAfter(MustParse(tt.expr), tt.from)
			assert.True(t, tt.want.Equal(got), "ожидалось %s, получено %s", tt.want, got)
		})
	}
}

func TestNextFireAfter_Location(t *testing.T) {
	msk := time.FixedZone("UTC+3", 3*60*60)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).In(msk)

	got := NextFireAfter(MustParse("0 9 * * *"), from)

	assert.True(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC).Equal(got), "получено %s", got)
}

func TestNextFireAfter_StrictlyAfter(t *testing.T) {
	exprs := []string{"* * * * *", "0 0 * * *", "*/7 * * * *", "30 0 0 * * *", "@every 90s", "0 0 29 2 *", "@monthly"}
	starts := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 59, 59, 999, time.UTC),
		time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 12, 30, 45, 500, time.UTC),
	}

	for _, expr := range exprs {
		s := MustParse(expr)
		for _, from := range starts {
			next := NextFireAfter(s, from)
			assert.True(t, next.After(from), "%s: %s не позже %s", expr, next, from)
			assert.Equal(t, next, NextFireAfter(s, from), "%s: результат должен быть детерминированным", expr)
		}
	}
}

func TestNextFireAfter_ZeroSchedule(t *testing.T) {
	var s Schedule
	assert.True(t, s.IsZero())
	assert.True(t, NextFireAfter(s, time.Now()).IsZero())
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("bad") })
}
