package model

import (
	"fmt"
	"time"
)

// ParseStatus итог обработки группы
type ParseStatus string

const (
	StatusSuccess ParseStatus = "success"
	StatusFailed  ParseStatus = "failed"
)

// ParseResult результат обработки одной группы
type ParseResult struct {
	Status         ParseStatus   `json:"status"`
	GroupID        int           `json:"group_id"`
	GroupName      string        `json:"group_name,omitempty"`
	Details        string        `json:"details,omitempty"`
	LessonsAdded   int           `json:"lessons_added"`
	LessonsUpdated int           `json:"lessons_updated"`
	LessonsDeleted int           `json:"lessons_deleted"`
	ErrorCode      string        `json:"error_code,omitempty"`
	Error          string        `json:"error,omitempty"`
	ParsedAt       time.Time     `json:"parsed_at"`
	Duration       time.Duration `json:"duration"`
}

// TotalChanges возвращает суммарное число изменений
func (r ParseResult) TotalChanges() int {
	return r.LessonsAdded + r.LessonsUpdated + r.LessonsDeleted
}

// IsSuccessful сообщает об успешной обработке
func (r ParseResult) IsSuccessful() bool {
	return r.Status == StatusSuccess
}

// SuccessResult создает успешный результат
func SuccessResult(groupID int, added, updated, deleted int) ParseResult {
	return ParseResult{
		Status:         StatusSuccess,
		GroupID:        groupID,
		Details:        fmt.Sprintf("added=%d updated=%d deleted=%d", added, updated, deleted),
		LessonsAdded:   added,
		LessonsUpdated: updated,
		LessonsDeleted: deleted,
		ParsedAt:       time.Now(),
	}
}

// FailedResult создает результат с ошибкой
func FailedResult(groupID int, err error) ParseResult {
	r := ParseResult{
		Status:    StatusFailed,
		GroupID:   groupID,
		ErrorCode: ErrorCode(err),
		ParsedAt:  time.Now(),
	}
	if err != nil {
		r.Error = err.Error()
		r.Details = err.Error()
	}
	return r
}
