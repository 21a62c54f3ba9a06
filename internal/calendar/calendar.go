// Package calendar вычисляет учебный год и чётность недель.
//
// Неделя, содержащая 1 сентября, считается нечётной (первой),
// далее недели чередуются до конца учебного года.
package calendar

import (
	"fmt"
	"time"

	"schedparser/internal/model"
)

// AcademicYear возвращает годы начала и конца учебного года, которому принадлежит дата
func AcademicYear(date time.Time) (start, end int) {
	year := date.Year()
	if date.Month() < time.September {
		return year - 1, year
	}
	return year, year + 1
}

// AcademicYearStart возвращает 1 сентября учебного года даты
func AcademicYearStart(date time.Time) time.Time {
	start, _ := AcademicYear(date)
	return time.Date(start, time.September, 1, 0, 0, 0, 0, date.Location())
}

// MondayOf возвращает понедельник календарной недели даты
func MondayOf(date time.Time) time.Time {
	day := truncateDay(date)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekNumber возвращает номер недели в учебном году, начиная с 1
func WeekNumber(date time.Time) int {
	first := MondayOf(AcademicYearStart(date))
	day := truncateDay(date)
	if day.Before(first) {
		return 1
	}
	return daysBetween(first, day)/7 + 1
}

// WeekParity возвращает чётность недели, содержащей дату
func WeekParity(date time.Time) model.WeekType {
	if WeekNumber(date)%2 == 0 {
		return model.WeekEven
	}
	return model.WeekOdd
}

// MondayOfParity возвращает понедельник недели даты, если её чётность
// совпадает с parity, иначе понедельник следующей недели
func MondayOfParity(date time.Time, parity model.WeekType) time.Time {
	monday := MondayOf(date)
	if WeekParity(date) != parity {
		return monday.AddDate(0, 0, 7)
	}
	return monday
}

// IsTeachingPeriod сообщает, попадает ли дата в сентябрь-июнь
func IsTeachingPeriod(date time.Time) bool {
	m := date.Month()
	return m >= time.September || m <= time.June
}

// FormatAcademicYear форматирует учебный год как "2024/2025"
func FormatAcademicYear(date time.Time) string {
	start, end := AcademicYear(date)
	return fmt.Sprintf("%d/%d", start, end)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween считает календарные дни без учета перехода на летнее время
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
