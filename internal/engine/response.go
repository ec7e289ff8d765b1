package engine

import (
	"github.com/vboughner/brain-lambda/internal/memory"
	"github.com/vboughner/brain-lambda/internal/report"
)

// Response is the result of one engine action
type Response struct {
	Success       bool           `json:"success" yaml:"success"`
	Speech        string         `json:"speech" yaml:"speech"`
	ServerVersion string         `json:"serverVersion" yaml:"serverVersion"`
	Answers       []Answer       `json:"answers,omitempty" yaml:"answers,omitempty"`
	WhenStored    int64          `json:"whenStored,omitempty" yaml:"whenStored,omitempty"`
	Deleted       int            `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Report        *report.Report `json:"report,omitempty" yaml:"report,omitempty"`
}

// Answer is a memory as presented to clients
type Answer struct {
	Text         string `json:"text" yaml:"text"`
	WhenStored   int64  `json:"whenStored" yaml:"whenStored"`
	UserID       string `json:"userId" yaml:"userId"`
	DeviceID     string `json:"deviceId" yaml:"deviceId"`
	CanTypeID    string `json:"canTypeId" yaml:"canTypeId"`
	Timezone     string `json:"timezone" yaml:"timezone"`
	StoreCountry string `json:"storeCountry" yaml:"storeCountry"`
	Score        int    `json:"score,omitempty" yaml:"score,omitempty"`
	HowLongAgo   string `json:"howLongAgo" yaml:"howLongAgo"`
}

func (e *Engine) respond(success bool, speech string) *Response {
	return &Response{
		Success:       success,
		Speech:        speech,
		ServerVersion: ServerVersion,
	}
}

func (e *Engine) answer(m memory.Match) Answer {
	return Answer{
		Text:         m.Text,
		WhenStored:   m.StoredAt,
		UserID:       m.OwnerID,
		DeviceID:     m.DeviceID,
		CanTypeID:    orUnknown(m.LanguageTag),
		Timezone:     orUnknown(m.Timezone),
		StoreCountry: orUnknown(m.StoreCountry),
		Score:        m.Score,
		HowLongAgo:   memory.HowLongAgo(m.StoredAt, e.Now()),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
