package model

import (
	"context"
	"errors"
	"fmt"
)

// Ошибки конвейера разбора
var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrFetchFailure       = errors.New("fetch failed")
	ErrMalformedCell      = errors.New("malformed cell")
	ErrUnknownDayLabel    = errors.New("unknown day label")
	ErrInvalidPeriodIndex = errors.New("invalid period index")
	ErrStorageFailure     = errors.New("storage failure")
	ErrNoScheduleTable    = errors.New("schedule table not found")
)

// Коды ошибок для ParseResult
const (
	CodeGroupNotFound      = "GROUP_NOT_FOUND"
	CodeFetchFailure       = "FETCH_FAILED"
	CodeMalformedCell      = "MALFORMED_CELL"
	CodeUnknownDayLabel    = "UNKNOWN_DAY_LABEL"
	CodeInvalidPeriodIndex = "INVALID_PERIOD_INDEX"
	CodeStorageFailure     = "STORAGE_FAILURE"
	CodeNoScheduleTable    = "NO_SCHEDULE_TABLE"
	CodeCancelled          = "CANCELLED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Стадии обработки группы
const (
	StageLookup    = "lookup"
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageBuild     = "build"
	StageReconcile = "reconcile"
)

// PipelineError ошибка обработки одной группы
type PipelineError struct {
	Code    string
	Stage   string
	GroupID int
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("group %d: %s: %v", e.GroupID, e.Stage, e.Err)
	}
	return fmt.Sprintf("group %d: %s failed", e.GroupID, e.Stage)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError создает ошибку с кодом, выведенным из err
func NewPipelineError(groupID int, stage string, err error) *PipelineError {
	return &PipelineError{
		Code:    ErrorCode(err),
		Stage:   stage,
		GroupID: groupID,
		Err:     err,
	}
}

// ErrorCode возвращает код для известной ошибки
func ErrorCode(err error) string {
	var pe *PipelineError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe) && pe.Code != "":
		return pe.Code
	case errors.Is(err, ErrGroupNotFound):
		return CodeGroupNotFound
	case errors.Is(err, ErrFetchFailure):
		return CodeFetchFailure
	case errors.Is(err, ErrMalformedCell):
		return CodeMalformedCell
	case errors.Is(err, ErrUnknownDayLabel):
		return CodeUnknownDayLabel
	case errors.Is(err, ErrInvalidPeriodIndex):
		return CodeInvalidPeriodIndex
	case errors.Is(err, ErrStorageFailure):
		return CodeStorageFailure
	case errors.Is(err, ErrNoScheduleTable):
		return CodeNoScheduleTable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	default:
		return CodeInternal
	}
}
