package model

import "github.com/uptrace/bun"

// GroupInfo представляет учебную группу и адрес её страницы расписания
type GroupInfo struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	GroupID       int    `bun:"group_id,pk" json:"group_id"`
	Name          string `bun:"name,notnull" json:"name"`
	URL           string `bun:"url,notnull" json:"url"`
	InstitutionID int    `bun:"institution_id,nullzero" json:"institution_id,omitempty"`
	DepartmentID  int    `bun:"department_id,nullzero" json:"department_id,omitempty"`
	Course        int    `bun:"course,nullzero" json:"course,omitempty"`
	IsActive      bool   `bun:"is_active,notnull,default:true" json:"is_active"`
}
