package domain

import (
	"time"

	"github.com/google/uuid"
)

// ToolCategory groups tools in the UI and in analytics.
type ToolCategory string

const (
	CategoryPDF     ToolCategory = "pdf"
	CategoryImage   ToolCategory = "image"
	CategoryConvert ToolCategory = "convert"
)

// MaxToolNameLength is the maximum analytics tool name length.
const MaxToolNameLength = 100

// IsValid reports whether c is in the category allow-list.
func (c ToolCategory) IsValid() bool {
	switch c {
	case CategoryPDF, CategoryImage, CategoryConvert:
		return true
	}
	return false
}

// UsageEvent records one tool invocation. Events are append-only.
type UsageEvent struct {
	ID           uuid.UUID    `json:"id"`
	ToolCategory ToolCategory `json:"toolCategory"`
	ToolName     string       `json:"toolName"`
	FileCount    int          `json:"fileCount"`
	Success      bool         `json:"success"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// NewUsageEvent creates a usage event stamped with a fresh id and the current time.
func NewUsageEvent(category ToolCategory, name string, fileCount int, success bool) *UsageEvent {
	return &UsageEvent{
		ID:           uuid.New(),
		ToolCategory: category,
		ToolName:     name,
		FileCount:    fileCount,
		Success:      success,
		CreatedAt:    time.Now().UTC(),
	}
}

// UsageFilter selects usage events for aggregation.
// A zero Since means all time; an empty Category means all categories.
type UsageFilter struct {
	Since    time.Time
	Category ToolCategory
}

// ToolUsage is the aggregate for one (category, tool) pair.
type ToolUsage struct {
	ToolCategory ToolCategory `json:"toolCategory"`
	ToolName     string       `json:"toolName"`
	Count        int64        `json:"count"`
	SuccessCount int64        `json:"successCount"`
	SuccessRate  float64      `json:"successRate"`
}

// DailyCount is one point of the usage time series, keyed by UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// UsageStats is the aggregate analytics response.
type UsageStats struct {
	Tools      []ToolUsage  `json:"tools"`
	Total      int64        `json:"total"`
	TimeSeries []DailyCount `json:"timeSeries"`
}
