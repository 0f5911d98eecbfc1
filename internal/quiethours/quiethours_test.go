package quiethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"21:30", 1290, false},
		{" 23:59 ", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"12:5", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_OpenWindows(t *testing.T) {
	t.Parallel()

	cases := []struct{ start, end string }{
		{"", ""},
		{"21:00", ""},
		{"", "09:00"},
		{"bogus", "09:00"},
		{"10:00", "10:00"},
	}
	for _, c := range cases {
		w := Parse(c.start, c.end)
		assert.True(t, w.Open(), "Parse(%q, %q) should be open", c.start, c.end)
		for h := 0; h < 24; h++ {
			assert.False(t, w.IsQuiet(at(1, h, 0)), "open window must never be quiet")
		}
	}
}

func TestIsQuiet_SameDayWindow(t *testing.T) {
	t.Parallel()

	w := Parse("13:00", "15:00")
	require.False(t, w.WrapsMidnight())

	assert.False(t, w.IsQuiet(at(1, 12, 59)))
	assert.True(t, w.IsQuiet(at(1, 13, 0)), "start is inclusive")
	assert.True(t, w.IsQuiet(at(1, 14, 59)))
	assert.False(t, w.IsQuiet(at(1, 15, 0)), "end is exclusive")
}

func TestIsQuiet_WrapsMidnight(t *testing.T) {
	t.Parallel()

	w := Parse("21:00", "09:00")
	require.True(t, w.WrapsMidnight())

	assert.False(t, w.IsQuiet(at(1, 20, 59)))
	assert.True(t, w.IsQuiet(at(1, 21, 0)))
	assert.True(t, w.IsQuiet(at(1, 23, 59)))
	assert.True(t, w.IsQuiet(at(2, 0, 0)))
	assert.True(t, w.IsQuiet(at(2, 8, 59)))
	assert.False(t, w.IsQuiet(at(2, 9, 0)))
	assert.False(t, w.IsQuiet(at(2, 12, 0)))
}

func TestPushOutside(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end string
		in, want   time.Time
	}{
		{"not quiet unchanged", "21:00", "09:00", at(1, 14, 30), at(1, 14, 30)},
		{"evening rolls to next morning", "21:00", "09:00", at(1, 21, 0), at(2, 9, 0)},
		{"late evening rolls to next morning", "21:00", "09:00", at(1, 23, 45), at(2, 9, 0)},
		{"early morning same day", "21:00", "09:00", at(2, 3, 15), at(2, 9, 0)},
		{"same-day window", "13:00", "15:00", at(1, 13, 30), at(1, 15, 0)},
		{"open window unchanged", "", "", at(1, 22, 0), at(1, 22, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := PushOutside(tt.in, tt.start, tt.end)
			assert.True(t, tt.want.Equal(got), "PushOutside(%s) = %s, want %s", tt.in, got, tt.want)
			assert.False(t, IsQuiet(got, tt.start, tt.end), "result must not be quiet")
		})
	}
}

func TestPushOutside_DropsSeconds(t *testing.T) {
	t.Parallel()

	in := time.Date(2024, 1, 1, 22, 10, 42, 500, time.UTC)
	got := PushOutside(in, "21:00", "09:00")
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), got)
}

func TestPushOutside_KeepsLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ART", -3*60*60)
	in := time.Date(2024, 3, 10, 22, 0, 0, 0, loc)
	got := PushOutside(in, "21:00", "08:00")
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, 11, got.Day())
}

func TestPushOutside_NeverQuietAcrossDay(t *testing.T) {
	t.Parallel()

	windows := [][2]string{{"21:00", "09:00"}, {"00:00", "06:00"}, {"12:00", "12:30"}, {"23:59", "00:01"}}
	for _, w := range windows {
		for m := 0; m < minutesPerDay; m += 7 {
			in := at(5, 0, 0).Add(time.Duration(m) * time.Minute)
			got := PushOutside(in, w[0], w[1])
			require.False(t, IsQuiet(got, w[0], w[1]), "window %v input %s pushed to quiet %s", w, in, got)
			require.False(t, got.Before(in), "push must not move backwards")
		}
	}
}

func TestWindow_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "open", Window{}.String())
	assert.Equal(t, "21:00-09:00", Parse("21:00", "9:00").String())
}
