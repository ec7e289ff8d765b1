package report

import (
	"errors"
	"math"
	"time"

	"github.com/vboughner/brain-lambda/internal/memory"
)

// ErrNoMemories is returned when there is nothing to report on
var ErrNoMemories = errors.New("no memories to report on")

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

// Report summarises every stored memory across all users
type Report struct {
	CurrentTimestamp                 int64   `json:"currentTimestamp" yaml:"currentTimestamp"`
	NumTotalMemories                 int     `json:"numTotalMemories" yaml:"numTotalMemories"`
	NumUniqueUsers                   int     `json:"numUniqueUsers" yaml:"numUniqueUsers"`
	AverageMemoriesPerUser           float64 `json:"averageMemoriesPerUser" yaml:"averageMemoriesPerUser"`
	MaxMemoriesOnOneUser             int     `json:"maxMemoriesOnOneUser" yaml:"maxMemoriesOnOneUser"`
	MaxMemoriesOnOneUserID           string  `json:"maxMemoriesOnOneUserId" yaml:"maxMemoriesOnOneUserId"`
	OldestMemoryTimestamp            int64   `json:"oldestMemoryTimestamp" yaml:"oldestMemoryTimestamp"`
	OldestMemoryTimeAgo              string  `json:"oldestMemoryTimeAgo" yaml:"oldestMemoryTimeAgo"`
	NewestMemoryTimestamp            int64   `json:"newestMemoryTimestamp" yaml:"newestMemoryTimestamp"`
	NewestMemoryTimeAgo              string  `json:"newestMemoryTimeAgo" yaml:"newestMemoryTimeAgo"`
	NumNewMemoriesInDay              int     `json:"numNewMemoriesInDay" yaml:"numNewMemoriesInDay"`
	NumNewMemoriesInWeek             int     `json:"numNewMemoriesInWeek" yaml:"numNewMemoriesInWeek"`
	NumNewMemoriesInMonth            int     `json:"numNewMemoriesInMonth" yaml:"numNewMemoriesInMonth"`
	NumUsersActiveInDay              int     `json:"numUsersActiveInDay" yaml:"numUsersActiveInDay"`
	NumUsersActiveInWeek             int     `json:"numUsersActiveInWeek" yaml:"numUsersActiveInWeek"`
	NumUsersActiveInMonth            int     `json:"numUsersActiveInMonth" yaml:"numUsersActiveInMonth"`
	NumUsersInactiveForMoreThanMonth int     `json:"numUsersInactiveForMoreThanMonth" yaml:"numUsersInactiveForMoreThanMonth"`
	NumCharactersStored              int     `json:"numCharactersStored" yaml:"numCharactersStored"`
	MinCharactersStored              int     `json:"minCharactersStored" yaml:"minCharactersStored"`
	MaxCharactersStored              int     `json:"maxCharactersStored" yaml:"maxCharactersStored"`
	AverageCharactersPerMemory       float64 `json:"averageCharactersPerMemory" yaml:"averageCharactersPerMemory"`
	AverageCharactersPerUser         float64 `json:"averageCharactersPerUser" yaml:"averageCharactersPerUser"`
	ReportRequestedByUserID          string  `json:"reportRequestedByUserId" yaml:"reportRequestedByUserId"`
	ReportRequestedByDeviceID        string  `json:"reportRequestedByDeviceId" yaml:"reportRequestedByDeviceId"`
}

// Compile builds a report over records as seen at now
func Compile(records []memory.Record, now time.Time, userID, deviceID string) (Report, error) {
	if len(records) == 0 {
		return Report{}, ErrNoMemories
	}

	nowMs := now.UnixMilli()
	r := Report{
		CurrentTimestamp:          nowMs,
		NumTotalMemories:          len(records),
		MaxMemoriesOnOneUser:      1,
		OldestMemoryTimestamp:     nowMs,
		MinCharactersStored:       math.MaxInt,
		ReportRequestedByUserID:   userID,
		ReportRequestedByDeviceID: deviceID,
	}

	perUser := make(map[string]int)
	latest := make(map[string]int64)
	for _, rec := range records {
		perUser[rec.OwnerID]++
		if n := perUser[rec.OwnerID]; n > r.MaxMemoriesOnOneUser {
			r.MaxMemoriesOnOneUser = n
			r.MaxMemoriesOnOneUserID = rec.OwnerID
		}
		if rec.StoredAt > latest[rec.OwnerID] {
			latest[rec.OwnerID] = rec.StoredAt
		}

		r.OldestMemoryTimestamp = min(r.OldestMemoryTimestamp, rec.StoredAt)
		r.NewestMemoryTimestamp = max(r.NewestMemoryTimestamp, rec.StoredAt)

		age := time.Duration(nowMs-rec.StoredAt) * time.Millisecond
		if age <= day {
			r.NumNewMemoriesInDay++
		}
		if age <= week {
			r.NumNewMemoriesInWeek++
		}
		if age <= month {
			r.NumNewMemoriesInMonth++
		}

		chars := len([]rune(rec.Text))
		r.NumCharactersStored += chars
		r.MinCharactersStored = min(r.MinCharactersStored, chars)
		r.MaxCharactersStored = max(r.MaxCharactersStored, chars)
	}

	for _, last := range latest {
		age := time.Duration(nowMs-last) * time.Millisecond
		if age <= day {
			r.NumUsersActiveInDay++
		}
		if age <= week {
			r.NumUsersActiveInWeek++
		}
		if age <= month {
			r.NumUsersActiveInMonth++
		}
	}

	r.NumUniqueUsers = len(perUser)
	r.NumUsersInactiveForMoreThanMonth = r.NumUniqueUsers - r.NumUsersActiveInMonth
	r.AverageMemoriesPerUser = round2(float64(r.NumTotalMemories) / float64(r.NumUniqueUsers))
	r.AverageCharactersPerMemory = round2(float64(r.NumCharactersStored) / float64(r.NumTotalMemories))
	r.AverageCharactersPerUser = round2(float64(r.NumCharactersStored) / float64(r.NumUniqueUsers))
	r.OldestMemoryTimeAgo = memory.HowLongAgo(r.OldestMemoryTimestamp, now)
	r.NewestMemoryTimeAgo = memory.HowLongAgo(r.NewestMemoryTimestamp, now)

	return r, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
