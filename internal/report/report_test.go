package report_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vboughner/brain-lambda/internal/memory"
	"github.com/vboughner/brain-lambda/internal/report"
)

func TestCompile(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }

	records := []memory.Record{
		{OwnerID: "alice", StoredAt: ago(time.Hour), Text: "abcd"},
		{OwnerID: "alice", StoredAt: ago(3 * 24 * time.Hour), Text: "abcdef"},
		{OwnerID: "alice", StoredAt: ago(10 * 24 * time.Hour), Text: "ab"},
		{OwnerID: "bob", StoredAt: ago(20 * 24 * time.Hour), Text: "abcdefgh"},
		{OwnerID: "carol", StoredAt: ago(60 * 24 * time.Hour), Text: "abc"},
	}

	r, err := report.Compile(records, now, "admin", "laptop")
	require.NoError(t, err)

	assert.Equal(t, now.UnixMilli(), r.CurrentTimestamp)
	assert.Equal(t, 5, r.NumTotalMemories)
	assert.Equal(t, 3, r.NumUniqueUsers)
	assert.Equal(t, 1.67, r.AverageMemoriesPerUser)
	assert.Equal(t, 3, r.MaxMemoriesOnOneUser)
	assert.Equal(t, "alice", r.MaxMemoriesOnOneUserID)

	assert.Equal(t, ago(60*24*time.Hour), r.OldestMemoryTimestamp)
	assert.Equal(t, ago(time.Hour), r.NewestMemoryTimestamp)
	assert.Equal(t, "1 hour ago", r.NewestMemoryTimeAgo)
	assert.Contains(t, r.OldestMemoryTimeAgo, "ago")

	assert.Equal(t, 1, r.NumNewMemoriesInDay)
	assert.Equal(t, 2, r.NumNewMemoriesInWeek)
	assert.Equal(t, 4, r.NumNewMemoriesInMonth)

	assert.Equal(t, 1, r.NumUsersActiveInDay)
	assert.Equal(t, 1, r.NumUsersActiveInWeek)
	assert.Equal(t, 2, r.NumUsersActiveInMonth)
	assert.Equal(t, 1, r.NumUsersInactiveForMoreThanMonth)

	assert.Equal(t, 23, r.NumCharactersStored)
	assert.Equal(t, 2, r.MinCharactersStored)
	assert.Equal(t, 8, r.MaxCharactersStored)
	assert.Equal(t, 4.6, r.AverageCharactersPerMemory)
	assert.Equal(t, 7.67, r.AverageCharactersPerUser)

	assert.Equal(t, "admin", r.ReportRequestedByUserID)
	assert.Equal(t, "laptop", r.ReportRequestedByDeviceID)
}

func TestCompileSingleMemoryPerUser(t *testing.T) {
	now := time.Now()
	records := []memory.Record{
		{OwnerID: "alice", StoredAt: now.UnixMilli(), Text: "one"},
		{OwnerID: "bob", StoredAt: now.UnixMilli(), Text: "two"},
	}

	r, err := report.Compile(records, now, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.MaxMemoriesOnOneUser)
	assert.Empty(t, r.MaxMemoriesOnOneUserID)
}

func TestCompileEmpty(t *testing.T) {
	_, err := report.Compile(nil, time.Now(), "admin", "laptop")
	assert.ErrorIs(t, err, report.ErrNoMemories)
}
