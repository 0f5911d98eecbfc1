package followup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linnemanlabs/aftercare/internal/quiethours"
)

func ts(month time.Month, day, hour int) time.Time {
	return time.Date(2024, month, day, hour, 0, 0, 0, time.UTC)
}

func requireTimes(t *testing.T, want, got []time.Time) {
	t.Helper()
	require.Len(t, got, len(want), "plan = %v", got)
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "send[%d] = %s, want %s", i, got[i], want[i])
	}
}

func TestPlan_RegistrationCadenceWithCutoff(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Anchor:          AnchorRegistration,
		FirstAfterHours: 6,
		CadenceHours:    Hours(24),
		EndAfterHours:   Hours(72),
	}

	got := Plan(cfg, ts(time.January, 1, 8), DefaultMaxCount)

	// 01-04T14:00 is 78h after the anchor and falls past the cutoff
	requireTimes(t, []time.Time{
		ts(time.January, 1, 14),
		ts(time.January, 2, 14),
		ts(time.January, 3, 14),
	}, got)
}

func TestPlan_FirstSendDeferredByQuietHours(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Anchor:          AnchorRegistration,
		FirstAfterHours: 1,
		CadenceHours:    Hours(24),
		EndAfterHours:   Hours(72),
		QuietHoursStart: "21:00",
		QuietHoursEnd:   "09:00",
	}

	sends := PlanSends(cfg, ts(time.January, 1, 20), DefaultMaxCount)
	require.NotEmpty(t, sends)

	assert.True(t, sends[0].Scheduled.Equal(ts(time.January, 1, 21)))
	assert.True(t, sends[0].At.Equal(ts(time.January, 2, 9)), "first send = %s", sends[0].At)
	assert.True(t, sends[0].Deferred)

	// grid stays on 21:00, so each later send defers to 09:00 the next day
	requireTimes(t, []time.Time{
		ts(time.January, 2, 9),
		ts(time.January, 3, 9),
		ts(time.January, 4, 9),
	}, Plan(cfg, ts(time.January, 1, 20), DefaultMaxCount))
}

func TestPlan_NoCadenceSingleSend(t *testing.T) {
	t.Parallel()

	anchor := ts(time.March, 5, 22)
	cfg := Config{
		Anchor:          AnchorSurgery,
		FirstAfterHours: 0,
		QuietHoursStart: "21:00",
		QuietHoursEnd:   "08:00",
	}

	for _, maxCount := range []int{-3, 0, 1, 5, 20, 100} {
		got := Plan(cfg, anchor, maxCount)
		require.Len(t, got, 1, "maxCount=%d", maxCount)
		want := quiethours.PushOutside(anchor, "21:00", "08:00")
		assert.True(t, want.Equal(got[0]))
	}
}

func TestPlan_NonPositiveCadenceIsSingleSend(t *testing.T) {
	t.Parallel()

	for _, c := range []int{0, -24} {
		cfg := Config{Anchor: AnchorDischarge, FirstAfterHours: 2, CadenceHours: Hours(c)}
		assert.Len(t, Plan(cfg, ts(time.May, 1, 10), 10), 1, "cadence %d", c)
	}
}

func TestPlan_MaxCountClamp(t *testing.T) {
	t.Parallel()

	cfg := Config{Anchor: AnchorSurgery, FirstAfterHours: 1, CadenceHours: Hours(1)}
	anchor := ts(time.June, 1, 0)

	assert.Len(t, Plan(cfg, anchor, 0), 1)
	assert.Len(t, Plan(cfg, anchor, -10), 1)
	assert.Len(t, Plan(cfg, anchor, 7), 7)
	assert.Len(t, Plan(cfg, anchor, 500), MaxCountLimit)
}

func TestPlan_CadenceDoesNotDrift(t *testing.T) {
	t.Parallel()

	// cadence 30h: the grid walks through the quiet window on some days only.
	cfg := Config{
		Anchor:          AnchorDischarge,
		FirstAfterHours: 12,
		CadenceHours:    Hours(30),
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "07:00",
	}
	anchor := ts(time.February, 1, 10)
	sends := PlanSends(cfg, anchor, 10)

	for i, s := range sends {
		wantRaw := anchor.Add(time.Duration(12+30*i) * time.Hour)
		assert.True(t, wantRaw.Equal(s.Scheduled), "send[%d] grid = %s, want %s", i, s.Scheduled, wantRaw)
	}
}

func TestPlan_CollapsedDeferralsAreDropped(t *testing.T) {
	t.Parallel()

	// hourly grid from 20:00: 21:00..08:00 all defer to 09:00 and collapse
	cfg := Config{
		Anchor:          AnchorSurgery,
		FirstAfterHours: 0,
		CadenceHours:    Hours(1),
		QuietHoursStart: "21:00",
		QuietHoursEnd:   "09:00",
	}
	got := Plan(cfg, ts(time.January, 10, 20), 4)

	requireTimes(t, []time.Time{
		ts(time.January, 10, 20),
		ts(time.January, 11, 9),
		ts(time.January, 11, 10),
		ts(time.January, 11, 11),
	}, got)
}

func TestPlan_DeferralPastCutoffStops(t *testing.T) {
	t.Parallel()

	// second grid point (24h, 21:00) is inside the cutoff but defers to 36h
	cfg := Config{
		Anchor:          AnchorSurgery,
		FirstAfterHours: 0,
		CadenceHours:    Hours(24),
		EndAfterHours:   Hours(30),
		QuietHoursStart: "21:00",
		QuietHoursEnd:   "09:00",
	}
	got := Plan(cfg, ts(time.January, 1, 21), 5)

	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(ts(time.January, 2, 9)))
}

func TestPlan_Properties(t *testing.T) {
	t.Parallel()

	windows := [][2]string{{"", ""}, {"21:00", "09:00"}, {"13:00", "14:30"}, {"00:00", "06:00"}}
	anchors := []time.Time{
		ts(time.January, 1, 0),
		ts(time.January, 1, 20),
		time.Date(2024, 7, 15, 23, 45, 0, 0, time.UTC),
	}

	for _, w := range windows {
		for _, first := range []int{0, 1, 6, 25} {
			for _, cadence := range []int{1, 5, 12, 24, 48} {
				for _, end := range []int{0, 24, 72, 200} {
					for _, anchor := range anchors {
						cfg := Config{
							Anchor:          AnchorSurgery,
							FirstAfterHours: first,
							CadenceHours:    Hours(cadence),
							QuietHoursStart: w[0],
							QuietHoursEnd:   w[1],
						}
						if end > 0 {
							cfg.EndAfterHours = Hours(end)
						}
						name := fmt.Sprintf("w=%v first=%d cadence=%d end=%d anchor=%s", w, first, cadence, end, anchor)

						got := Plan(cfg, anchor, MaxCountLimit)
						require.NotEmpty(t, got, name)
						for i, s := range got {
							require.False(t, quiethours.IsQuiet(s, w[0], w[1]), "%s: send[%d]=%s is quiet", name, i, s)
							if i > 0 {
								require.True(t, s.After(got[i-1]), "%s: not strictly increasing at %d", name, i)
								if end > 0 {
									require.LessOrEqual(t, s.Sub(anchor), time.Duration(end)*time.Hour, "%s: send[%d] past cutoff", name, i)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestPlan_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Anchor:          AnchorSurgery,
		FirstAfterHours: 3,
		CadenceHours:    Hours(8),
		EndAfterHours:   Hours(96),
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "08:00",
	}
	anchor := ts(time.April, 2, 17)
	want := Plan(cfg, anchor, 12)
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, Plan(cfg, anchor, 12))
	}
}
