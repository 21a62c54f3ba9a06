package parser

import (
	"regexp"
	"strings"

	"schedparser/internal/model"
)

// LessonInfo результат разбора текста одной ячейки
type LessonInfo struct {
	Name     string
	Type     model.LessonType
	Teachers []string
	Cabinets []string
	Subgroup model.Subgroup
	Comment  string
	// NameFallback выставляется, когда название пришлось взять из всего текста ячейки
	NameFallback bool
}

// IsEmpty сообщает, что ячейка не содержит занятия
func (li LessonInfo) IsEmpty() bool {
	return li.Name == ""
}

// TeacherNames возвращает преподавателей через "; "
func (li LessonInfo) TeacherNames() string {
	return strings.Join(li.Teachers, "; ")
}

// CabinetNumbers возвращает аудитории через "; "
func (li LessonInfo) CabinetNumbers() string {
	return strings.Join(li.Cabinets, "; ")
}

var lessonTypePrefixes = map[string]model.LessonType{
	"лек":  model.LessonLecture,
	"пр":   model.LessonPractice,
	"лаб":  model.LessonLab,
	"сем":  model.LessonSeminar,
	"конс": model.LessonConsultation,
}

const (
	surnamePattern  = `[А-ЯЁ]{2,}(?:-[А-ЯЁ]{2,})*`
	initialsPattern = `[А-ЯЁ]\.?(?:\s?[А-ЯЁ]\.?){0,2}`
)

var (
	lessonTypeRe   = regexp.MustCompile(`(?i)^(лек|пр|лаб|сем|конс)\.\s*`)
	subgroupRe     = regexp.MustCompile(`(?i)[-,\s]*\b(\d)\s*п/г`)
	markerPairRe   = regexp.MustCompile(`^\s*(` + surnamePattern + `(?:\s+` + initialsPattern + `)?)\s+([аa]\.\S+)`)
	commentRe      = regexp.MustCompile(`(?i)\s+(и/д\S*|экол|эбж)$`)
	teacherPairRe  = regexp.MustCompile(`\s+(` + surnamePattern + `(?:\s+` + initialsPattern + `)?)\s+-\s+[аa]\.(\S+)$`)
	cabinetRe      = regexp.MustCompile(`(?:^|\s)[аa]\.(\S+)`)
	strictTeachRe  = regexp.MustCompile(`(?:^|\s)(` + surnamePattern + `)((?:\s+` + initialsPattern + `)?)$`)
	fallbackTeach  = regexp.MustCompile(`(?:^|\s)([А-ЯЁ]{2,}(?:\s+\d+)?)$`)
	wholeTeacherRe = regexp.MustCompile(`^(` + surnamePattern + `)\s+(` + initialsPattern + `)$`)
	initialLetter  = regexp.MustCompile(`[А-ЯЁ]`)
	spacedHyphenRe = regexp.MustCompile(`\s+-\s*|\s*-\s+`)
	residualInitRe = regexp.MustCompile(`(?:\s+[А-ЯЁ]\.){1,2}$`)
	strayCommentRe = regexp.MustCompile(`(?i)\s*и/д\S*$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// ParseCell разбирает текст ячейки расписания.
//
// Этапы выполняются в фиксированном порядке: вид занятия, подгруппа,
// хвостовые комментарии, дополнительные пары преподаватель-аудитория,
// основная аудитория, основной преподаватель, название.
func ParseCell(raw string) LessonInfo {
	text := normalizeCellText(raw)
	if isPlaceholder(text) {
		return LessonInfo{}
	}

	var info LessonInfo
	rest := text

	info.Type, rest = extractLessonType(rest)
	info.Subgroup, rest = extractSubgroup(rest)

	comments, rest := extractComments(rest)

	extraTeachers, extraCabinets, rest := extractTeacherPairs(rest)

	cabinet, trailing, rest := extractCabinet(rest)
	if trailing != "" {
		comments = append(comments, trailing)
	}

	teacher, rest := extractTeacher(rest)

	if teacher != "" {
		info.Teachers = append(info.Teachers, teacher)
	}
	info.Teachers = append(info.Teachers, extraTeachers...)
	for i, t := range info.Teachers {
		info.Teachers[i] = normalizeTeacher(t)
	}

	if cabinet != "" {
		info.Cabinets = append(info.Cabinets, cabinet)
	}
	info.Cabinets = append(info.Cabinets, extraCabinets...)

	name, stray := cleanName(rest)
	if stray != "" {
		comments = append(comments, stray)
	}
	if name == "" && (len(info.Teachers) > 0 || len(info.Cabinets) > 0) {
		name = collapseSpaces(text)
		info.NameFallback = true
	}
	info.Name = name
	info.Comment = strings.Join(comments, " ")

	return info
}

// normalizeCellText заменяет неразрывные пробелы и обрезает края
func normalizeCellText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u2007', '\u202f', '\t', '\r', '\n':
			return ' '
		case '\u200b', '\ufeff':
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// IsPlaceholder сообщает, что ячейка пустая или содержит заполнитель "_"
func IsPlaceholder(text string) bool {
	return isPlaceholder(normalizeCellText(text))
}

func isPlaceholder(s string) bool {
	return strings.Trim(s, "_ ") == ""
}

func extractLessonType(s string) (model.LessonType, string) {
	m := lessonTypeRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", s
	}
	prefix := strings.ToLower(s[m[2]:m[3]])
	return lessonTypePrefixes[prefix], strings.TrimSpace(s[m[1]:])
}

// extractSubgroup принимает только подгруппы 1 и 2 и снимает все такие пометки.
// Если в ячейке указаны разные подгруппы, занятие относится ко всей группе.
// Преподаватель с аудиторией после второй пометки переписывается в форму
// "ФАМИЛИЯ И.О. - а.КОД", чтобы его сняла extractTeacherPairs.
func extractSubgroup(s string) (model.Subgroup, string) {
	var (
		found []model.Subgroup
		b     strings.Builder
		last  int
	)
	for _, m := range subgroupRe.FindAllStringSubmatchIndex(s, -1) {
		var sg model.Subgroup
		switch s[m[2]:m[3]] {
		case "1":
			sg = model.Subgroup1
		case "2":
			sg = model.Subgroup2
		default:
			continue
		}

		b.WriteString(s[last:m[0]])
		b.WriteString(" ")
		last = m[1]
		if len(found) > 0 {
			if p := markerPairRe.FindStringSubmatchIndex(s[last:]); p != nil {
				b.WriteString(s[last+p[2] : last+p[3]])
				b.WriteString(" - ")
				b.WriteString(s[last+p[4] : last+p[5]])
				last += p[1]
			}
		}
		found = append(found, sg)
	}
	if len(found) == 0 {
		return model.WholeGroup, s
	}
	b.WriteString(s[last:])

	sg := found[0]
	for _, other := range found[1:] {
		if other != found[0] {
			sg = model.WholeGroup
		}
	}
	return sg, b.String()
}

// extractComments снимает отдельно стоящие служебные пометки с конца строки.
// Пометки, слитые с номером аудитории, остаются на месте.
func extractComments(s string) ([]string, string) {
	var comments []string
	for {
		m := commentRe.FindStringSubmatchIndex(s)
		if m == nil {
			return comments, s
		}
		comments = append([]string{s[m[2]:m[3]]}, comments...)
		s = s[:m[0]]
	}
}

// extractTeacherPairs снимает с конца строки пары "ФАМИЛИЯ И.О. - а.КОД"
func extractTeacherPairs(s string) (teachers, cabinets []string, rest string) {
	for {
		m := teacherPairRe.FindStringSubmatchIndex(s)
		if m == nil {
			return teachers, cabinets, s
		}
		teachers = append([]string{s[m[2]:m[3]]}, teachers...)
		cabinets = append([]string{s[m[4]:m[5]]}, cabinets...)
		s = s[:m[0]]
	}
}

// extractCabinet возвращает основную аудиторию и текст после неё.
// Если после аудитории стоит преподаватель, он возвращается в остаток.
func extractCabinet(s string) (cabinet, trailing, rest string) {
	m := cabinetRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", "", strings.TrimSpace(s)
	}
	cabinet = s[m[2]:m[3]]
	before := strings.TrimSpace(s[:m[0]])
	after := collapseSpaces(s[m[1]:])
	if after != "" && wholeTeacherRe.MatchString(after) {
		return cabinet, "", before + " " + after
	}
	return cabinet, after, before
}

// extractTeacher ищет фамилию с инициалами в конце строки, а если её нет,
// короткое обозначение заглавными буквами с необязательным номером
func extractTeacher(s string) (string, string) {
	s = strings.TrimSpace(s)
	if m := strictTeachRe.FindStringSubmatchIndex(s); m != nil {
		surname := s[m[2]:m[3]]
		initials := strings.TrimSpace(s[m[4]:m[5]])
		if initials != "" || len([]rune(surname)) >= 3 {
			teacher := surname
			if initials != "" {
				teacher += " " + initials
			}
			return teacher, strings.TrimSpace(s[:m[0]])
		}
	}
	if m := fallbackTeach.FindStringSubmatchIndex(s); m != nil {
		return collapseSpaces(s[m[2]:m[3]]), strings.TrimSpace(s[:m[0]])
	}
	return "", s
}

// normalizeTeacher приводит инициалы к виду "И.О."
func normalizeTeacher(teacher string) string {
	teacher = collapseSpaces(teacher)
	m := wholeTeacherRe.FindStringSubmatch(teacher)
	if m == nil {
		return teacher
	}
	letters := initialLetter.FindAllString(m[2], -1)
	return m[1] + " " + strings.Join(letters, ".") + "."
}

// cleanName собирает название из остатка и возвращает слитый комментарий, если он был
func cleanName(s string) (name, stray string) {
	s = spacedHyphenRe.ReplaceAllString(s, " ")
	s = collapseSpaces(s)
	if loc := strayCommentRe.FindStringIndex(s); loc != nil {
		stray = strings.TrimSpace(s[loc[0]:loc[1]])
		s = s[:loc[0]]
	}
	s = residualInitRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " -,;")
	return collapseSpaces(s), stray
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
