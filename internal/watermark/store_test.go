package watermark

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "river.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadDatetimeValueMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)

	v, err := s.ReadDatetimeValue("ORG", "lastIndexedIssueUpdateDate")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestStoreThenReadDatetimeValueRoundTrips(t *testing.T) {
	s := openTestStore(t)

	ts := time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)
	require.NoError(t, s.StoreDatetimeValue("ORG", "lastIndexedIssueUpdateDate", ts, nil))

	v, err := s.ReadDatetimeValue("ORG", "lastIndexedIssueUpdateDate")
	require.NoError(t, err)
	require.NotNil(t, v)
	require.True(t, ts.Equal(*v))
}

func TestStoreDatetimeValueUpsertsOnSecondWrite(t *testing.T) {
	s := openTestStore(t)

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	second := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)

	require.NoError(t, s.StoreDatetimeValue("ORG", "lastIndexedIssueUpdateDate", first, nil))
	require.NoError(t, s.StoreDatetimeValue("ORG", "lastIndexedIssueUpdateDate", second, nil))

	v, err := s.ReadDatetimeValue("ORG", "lastIndexedIssueUpdateDate")
	require.NoError(t, err)
	require.True(t, second.Equal(*v))
}

func TestDeleteDatetimeValueClearsWatermark(t *testing.T) {
	s := openTestStore(t)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.StoreDatetimeValue("ORG", "lastIndexedIssueUpdateDate", ts, nil))
	require.NoError(t, s.DeleteDatetimeValue("ORG", "lastIndexedIssueUpdateDate"))

	v, err := s.ReadDatetimeValue("ORG", "lastIndexedIssueUpdateDate")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestStoreDatetimeValueWithinCallerTransaction(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin()
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.StoreDatetimeValue("ORG", "lastIndexedIssueUpdateDate", ts, tx))
	require.NoError(t, tx.Commit())

	v, err := s.ReadDatetimeValue("ORG", "lastIndexedIssueUpdateDate")
	require.NoError(t, err)
	require.True(t, ts.Equal(*v))
}

func TestWriteActivityLogAndRecentActivity(t *testing.T) {
	s := openTestStore(t)

	rec := ActivityRecord{
		ProjectKey:    "ORG",
		UpdateType:    "FULL",
		Result:        "OK",
		StartDate:     time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		TimeElapsed:   2500 * time.Millisecond,
		IssuesUpdated: 3,
		IssuesDeleted: 1,
	}
	require.NoError(t, s.WriteActivityLog(rec))

	rows, err := s.RecentActivity("ORG", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "FULL", rows[0].UpdateType)
	require.Equal(t, "OK", rows[0].Result)
	require.Equal(t, 3, rows[0].IssuesUpdated)
	require.Equal(t, 1, rows[0].IssuesDeleted)
	require.Empty(t, rows[0].ErrorMessage)
}

func TestRecentActivityOrdersMostRecentFirst(t *testing.T) {
	s := openTestStore(t)

	older := ActivityRecord{ProjectKey: "ORG", UpdateType: "INCREMENTAL", Result: "OK", StartDate: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	newer := ActivityRecord{ProjectKey: "ORG", UpdateType: "INCREMENTAL", Result: "ERROR", StartDate: time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC), ErrorMessage: "timeout"}

	require.NoError(t, s.WriteActivityLog(older))
	require.NoError(t, s.WriteActivityLog(newer))

	rows, err := s.RecentActivity("ORG", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "ERROR", rows[0].Result)
	require.Equal(t, "timeout", rows[0].ErrorMessage)
}
