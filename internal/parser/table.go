// Package parser разбирает HTML-страницы расписания: таблицу занятий,
// текст отдельных ячеек и метаданные страницы.
package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HighlightColor цвет шрифта, которым выделена текущая неделя
const HighlightColor = "#0000ff"

// headerRows строки легенды (номера пар и время), которые идут перед днями
const headerRows = 2

// Cell ячейка таблицы
type Cell struct {
	Text        string
	Highlighted bool
}

// PeriodCell ячейка с номером пары
type PeriodCell struct {
	Period      int
	Text        string
	Highlighted bool
}

// Row строка расписания: день и ячейки пар по порядку
type Row struct {
	Day         string
	Periods     []PeriodCell
	Highlighted bool
}

// Table результат разбора таблицы
type Table struct {
	Rows []Row
	// Header строки легенды, отброшенные при разборе
	Header [][]Cell
}

// HasHighlight сообщает, есть ли в таблице хотя бы одна выделенная строка
func (t Table) HasHighlight() bool {
	for _, r := range t.Rows {
		if r.Highlighted {
			return true
		}
	}
	return false
}

// ExtractTable разбирает разметку страницы расписания
func ExtractTable(r io.Reader) (Table, error) {
	rows, err := scanRows(r)
	if err != nil {
		return Table{}, err
	}
	return buildTable(rows), nil
}

// ExtractTableString разбирает разметку, уже загруженную в строку
func ExtractTableString(markup string) Table {
	// strings.Reader не возвращает ошибок кроме io.EOF
	t, _ := ExtractTable(strings.NewReader(markup))
	return t
}

func buildTable(rows []rawRow) Table {
	var t Table
	for i, row := range rows {
		if i < headerRows {
			t.Header = append(t.Header, row.cells)
			continue
		}
		out := Row{Day: row.cells[0].Text, Highlighted: row.highlighted}
		for j, c := range row.cells[1:] {
			out.Periods = append(out.Periods, PeriodCell{Period: j + 1, Text: c.Text, Highlighted: c.Highlighted})
		}
		t.Rows = append(t.Rows, out)
	}
	return t
}

type extractorState int

const (
	stateOutside extractorState = iota
	stateInTable
	stateInRow
	stateInCell
)

func (s extractorState) String() string {
	switch s {
	case stateOutside:
		return "outside-table"
	case stateInTable:
		return "in-table"
	case stateInRow:
		return "in-row"
	case stateInCell:
		return "in-cell"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenStart
	tokenEnd
	tokenEOF
)

type token struct {
	kind  tokenKind
	tag   string
	text  string
	color string
}

type rawRow struct {
	cells       []Cell
	highlighted bool
}

// accumulator передается в step по значению и возвращается обновленным
type accumulator struct {
	rows      []rawRow
	cells     []Cell
	text      string
	highlight bool
	// depth глубина вложенности таблиц; структура вложенных таблиц не разбирается
	depth int
}

func (a accumulator) closeCell() accumulator {
	text := collapseSpaces(normalizeCellText(a.text))
	a.cells = append(a.cells, Cell{Text: text, Highlighted: a.highlight})
	a.text = ""
	a.highlight = false
	return a
}

// closeRow записывает строку, только если в ней есть ячейки
func (a accumulator) closeRow() accumulator {
	if len(a.cells) == 0 {
		return a
	}
	row := rawRow{cells: a.cells}
	for _, c := range a.cells {
		row.highlighted = row.highlighted || c.Highlighted
	}
	a.rows = append(a.rows, row)
	a.cells = nil
	return a
}

// flush закрывает открытые ячейку и строку
func flush(s extractorState, a accumulator) accumulator {
	if s == stateInCell {
		a = a.closeCell()
	}
	if s == stateInCell || s == stateInRow {
		a = a.closeRow()
	}
	return a
}

// step выполняет один переход автомата
func step(s extractorState, a accumulator, tok token) (extractorState, accumulator) {
	switch tok.kind {
	case tokenEOF:
		a = flush(s, a)
		a.depth = 0
		return stateOutside, a

	case tokenText:
		if s == stateInCell {
			a.text += tok.text
		}
		return s, a

	case tokenStart:
		return stepStart(s, a, tok)

	case tokenEnd:
		return stepEnd(s, a, tok)
	}
	return s, a
}

func stepStart(s extractorState, a accumulator, tok token) (extractorState, accumulator) {
	if tok.tag == "table" {
		if s == stateOutside {
			a.depth = 1
			return stateInTable, a
		}
		a.depth++
		return s, a
	}

	if a.depth > 1 {
		if s == stateInCell && tok.tag == "font" && tok.color == HighlightColor {
			a.highlight = true
		}
		if s == stateInCell && isBreakTag(tok.tag) {
			a.text += " "
		}
		return s, a
	}

	switch tok.tag {
	case "tr":
		if s == stateOutside {
			return s, a
		}
		return stateInRow, flush(s, a)

	case "td", "th":
		switch s {
		case stateInRow:
			return stateInCell, a
		case stateInCell:
			return stateInCell, a.closeCell()
		}
		return s, a

	case "font":
		if s == stateInCell && tok.color == HighlightColor {
			a.highlight = true
		}
		return s, a
	}

	if s == stateInCell && isBreakTag(tok.tag) {
		a.text += " "
	}
	return s, a
}

func stepEnd(s extractorState, a accumulator, tok token) (extractorState, accumulator) {
	if tok.tag == "table" {
		if a.depth > 1 {
			a.depth--
			return s, a
		}
		if s == stateOutside {
			return s, a
		}
		a = flush(s, a)
		a.depth = 0
		return stateOutside, a
	}

	if a.depth > 1 {
		return s, a
	}

	switch tok.tag {
	case "td", "th":
		if s == stateInCell {
			return stateInRow, a.closeCell()
		}
	case "tr":
		if s == stateInCell || s == stateInRow {
			return stateInTable, flush(s, a)
		}
	case "p", "div":
		if s == stateInCell {
			a.text += " "
		}
	}
	return s, a
}

func isBreakTag(tag string) bool {
	switch tag {
	case "br", "p", "div":
		return true
	}
	return false
}

// scanRows прогоняет токены html.Tokenizer через автомат
func scanRows(r io.Reader) ([]rawRow, error) {
	z := html.NewTokenizer(r)
	state, acc := stateOutside, accumulator{}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("failed to tokenize schedule page: %w", err)
			}
			_, acc = step(state, acc, token{kind: tokenEOF})
			return acc.rows, nil
		}

		tok, ok := convertToken(z.Token())
		if !ok {
			continue
		}
		state, acc = step(state, acc, tok)
	}
}

func convertToken(t html.Token) (token, bool) {
	switch t.Type {
	case html.TextToken:
		return token{kind: tokenText, text: t.Data}, true
	case html.StartTagToken, html.SelfClosingTagToken:
		tok := token{kind: tokenStart, tag: strings.ToLower(t.Data)}
		for _, attr := range t.Attr {
			if strings.EqualFold(attr.Key, "color") {
				tok.color = strings.ToLower(strings.TrimSpace(attr.Val))
			}
		}
		return tok, true
	case html.EndTagToken:
		return token{kind: tokenEnd, tag: strings.ToLower(t.Data)}, true
	default:
		return token{}, false
	}
}
