package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowAdmitsEndOfDayBoundary(t *testing.T) {
	// B2: 18:00-24:00 Monday admits 23:59:59 Monday UTC but not 00:00:01 Tuesday.
	f := &File{Clusters: map[string]ClusterConfig{
		"c1": {Windows: []WindowConfig{{Start: "18:00", End: "24:00", Weekdays: []string{"mon"}}}},
	}}
	checker := NewChecker(f)

	admitted := time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC) // Monday
	require.Equal(t, time.Monday, admitted.Weekday())
	res, err := checker.Check("c1", admitted)
	require.NoError(t, err)
	require.True(t, res.InWindow)

	rejected := time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC) // Tuesday
	res, err = checker.Check("c1", rejected)
	require.NoError(t, err)
	require.False(t, res.InWindow)
}

func TestMidnightCrossingOrdinalWindow(t *testing.T) {
	// B3: 23:00-01:00 with ordinal_days=["last fri"] on the last Friday of
	// January 2024 (2024-01-26) admits 2024-01-26 23:30 and 2024-01-27
	// 00:30, rejects 2024-01-19 23:30.
	f := &File{Clusters: map[string]ClusterConfig{
		"c1": {Windows: []WindowConfig{{Start: "23:00", End: "01:00", OrdinalDays: []string{"last fri"}}}},
	}}
	checker := NewChecker(f)

	admittedBefore := time.Date(2024, 1, 26, 23, 30, 0, 0, time.UTC)
	res, err := checker.Check("c1", admittedBefore)
	require.NoError(t, err)
	require.True(t, res.InWindow)

	admittedAfter := time.Date(2024, 1, 27, 0, 30, 0, 0, time.UTC)
	res, err = checker.Check("c1", admittedAfter)
	require.NoError(t, err)
	require.True(t, res.InWindow)

	rejected := time.Date(2024, 1, 19, 23, 30, 0, 0, time.UTC)
	res, err = checker.Check("c1", rejected)
	require.NoError(t, err)
	require.False(t, res.InWindow)
}

func TestNoConfigEntryDoesNotWait(t *testing.T) {
	f := &File{Clusters: map[string]ClusterConfig{}}
	checker := NewChecker(f)
	res, err := checker.Check("missing", time.Now().UTC())
	require.NoError(t, err)
	require.False(t, res.ShouldWait)
}

func TestNilConfigFailsOpen(t *testing.T) {
	checker := NewChecker(nil)
	res, err := checker.Check("c1", time.Now().UTC())
	require.NoError(t, err)
	require.False(t, res.ShouldWait)
}
