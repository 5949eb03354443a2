package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeltaBounds(t *testing.T) {
	ratings := []int{0, 200, 800, 1000, 1200, 2000, 3500}
	scores := [][2]int{{2, 0}, {2, 1}, {3, 2}, {1, 0}}
	streaks := []int{0, 1, 3, 5, 9}

	for _, rw := range ratings {
		for _, rl := range ratings {
			for _, sc := range scores {
				for _, st := range streaks {
					d := ComputeDelta(rw, rl, sc[0], sc[1], st)
					assert.GreaterOrEqual(t, d.WinGain, 100)
					assert.LessOrEqual(t, d.WinGain, 250)
					assert.GreaterOrEqual(t, d.LoseLoss, -100)
					assert.LessOrEqual(t, d.LoseLoss, -50)
					assert.Positive(t, d.WinGain)
					assert.Negative(t, d.LoseLoss)
				}
			}
		}
	}
}

func TestComputeDeltaFavoritesGainLess(t *testing.T) {
	// As the winner's rating advantage grows, the win gain must never grow.
	prev := ComputeDelta(600, 1000, 2, 0, 0).WinGain
	for gap := -350; gap <= 800; gap += 50 {
		d := ComputeDelta(1000+gap, 1000, 2, 0, 0)
		require.LessOrEqual(t, d.WinGain, prev, "gap %d", gap)
		prev = d.WinGain
	}
}

func TestComputeDeltaStreakBonus(t *testing.T) {
	// 1200 vs 1000, 2-0 stays inside the clamp window for every streak,
	// so the bonus itself is observable.
	prev := 0
	for streak := 0; streak <= 5; streak++ {
		d := ComputeDelta(1200, 1000, 2, 0, streak)
		require.GreaterOrEqual(t, d.WinGain, prev, "streak %d", streak)
		prev = d.WinGain
	}

	// Flat beyond the 5-streak cap.
	capped := ComputeDelta(1200, 1000, 2, 0, 5)
	require.Equal(t, capped, ComputeDelta(1200, 1000, 2, 0, 6))
	require.Equal(t, capped, ComputeDelta(1200, 1000, 2, 0, 11))
}

func TestComputeDeltaKnownValues(t *testing.T) {
	// Even series, 2-1, no streak: raw delta is 320 and clamps to the ceiling.
	d := ComputeDelta(1000, 1000, 2, 1, 0)
	require.Equal(t, 250, d.WinGain)
	require.Equal(t, -100, d.LoseLoss)

	// 1200 vs 1000, 2-0 sweep, streak 3:
	// Ew = 1/(1+10^(-200/400)) = 0.759747
	// K  = 600 * 1.15 * 1.2 = 828
	// winGain = round(828 * 0.240253) = 199, unclamped.
	d = ComputeDelta(1200, 1000, 2, 0, 3)
	require.Equal(t, 199, d.WinGain)
	require.Equal(t, -100, d.LoseLoss)
}

func TestComputeDeltaZeroScores(t *testing.T) {
	// A series with no recorded games treats the margin as a sweep.
	require.Equal(t, ComputeDelta(1200, 1000, 2, 0, 0), ComputeDelta(1200, 1000, 0, 0, 0))
}

func TestApplyFloor(t *testing.T) {
	assert.Equal(t, 0, ApplyFloor(-40))
	assert.Equal(t, 0, ApplyFloor(0))
	assert.Equal(t, 950, ApplyFloor(950))
}
