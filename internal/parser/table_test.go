package parser

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/schedule_1123.html")
	require.NoError(t, err)
	return string(data)
}

func TestExtractTable_Fixture(t *testing.T) {
	table := ExtractTableString(loadFixture(t))

	require.Len(t, table.Header, 2)
	assert.Equal(t, "Пары", table.Header[0][0].Text)
	assert.Equal(t, "Время", table.Header[1][0].Text)
	assert.Equal(t, "09:00-10:35", table.Header[1][1].Text)

	require.Len(t, table.Rows, 12)
	days := []string{"Пнд", "Втр", "Срд", "Чтв", "Птн", "Сбт"}
	for i, row := range table.Rows {
		assert.Equal(t, days[i%6], row.Day, "row %d", i)
		assert.Equal(t, i >= 6, row.Highlighted, "row %d", i)
		require.Len(t, row.Periods, 8, "row %d", i)
		for j, p := range row.Periods {
			assert.Equal(t, j+1, p.Period)
		}
	}

	monday := table.Rows[0]
	assert.Equal(t, "лек.ЭД 3 Оценка профессиональных рисков ПЛИШКИНА О.В. а.8240 эбж", monday.Periods[0].Text)
	assert.Equal(t, "_", monday.Periods[5].Text)
	assert.Equal(t, "", monday.Periods[7].Text)

	blueMonday := table.Rows[6]
	assert.Equal(t, "лек.Экология ЖАРНИКОВА Е.В. а.8241 экол", blueMonday.Periods[0].Text)
	assert.True(t, blueMonday.Periods[0].Highlighted)

	assert.True(t, table.HasHighlight())
}

func TestExtractTable_SkipsHeaderAndEmptyRows(t *testing.T) {
	markup := `<table>
<tr><td>Пары</td><td>1-я</td></tr>
<tr></tr>
<tr><td>Время</td><td>09:00-10:35</td></tr>
<tr><td>Пнд</td><td>лек.История МИХЕЕВ Б.В. а.15-466</td></tr>
</table>`

	table := ExtractTableString(markup)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Пнд", table.Rows[0].Day)
	assert.False(t, table.HasHighlight())
}

func TestExtractTable_UnbalancedMarkupFlushedAtEOF(t *testing.T) {
	markup := `<table><tr><td>h1</td></tr><tr><td>h2</td></tr>
<tr><td>Втр<td>пр.Химия СЯЧИНОВА Н.В. а.8402`

	table := ExtractTableString(markup)
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, "Втр", row.Day)
	require.Len(t, row.Periods, 1)
	assert.Equal(t, "пр.Химия СЯЧИНОВА Н.В. а.8402", row.Periods[0].Text)
}

func TestExtractTable_EntitiesAndBreaks(t *testing.T) {
	markup := `<table><tr><td>h</td></tr><tr><td>h</td></tr>
<tr><td>Срд</td><td>лек.История&nbsp;МИХЕЕВ<br>Б.В.&nbsp;&nbsp;а.15-466</td></tr></table>`

	table := ExtractTableString(markup)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "лек.История МИХЕЕВ Б.В. а.15-466", table.Rows[0].Periods[0].Text)
}

func TestExtractTable_IgnoresTextOutsideCells(t *testing.T) {
	markup := `<p>Расписание</p><font color="#0000ff">не ячейка</font>
<table><tr><td>h</td></tr><tr><td>h</td></tr><tr><td>Пнд</td><td>_</td></tr></table>
<p>подвал</p>`

	table := ExtractTableString(markup)
	require.Len(t, table.Rows, 1)
	assert.False(t, table.Rows[0].Highlighted)
}

func TestExtractTable_NestedTableTextStaysInCell(t *testing.T) {
	markup := `<table><tr><td>h</td></tr><tr><td>h</td></tr>
<tr><td>Чтв</td><td>лек.История <table><tr><td><font color="#0000FF">МИХЕЕВ Б.В.</font></td></tr></table> а.15-466</td><td>_</td></tr>
</table>`

	table := ExtractTableString(markup)
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	require.Len(t, row.Periods, 2)
	assert.Equal(t, "лек.История МИХЕЕВ Б.В. а.15-466", row.Periods[0].Text)
	assert.True(t, row.Periods[0].Highlighted)
	assert.True(t, row.Highlighted)
}

func TestStep_Transitions(t *testing.T) {
	s, acc := stateOutside, accumulator{}

	steps := []struct {
		tok  token
		want extractorState
	}{
		{token{kind: tokenText, text: "мусор"}, stateOutside},
		{token{kind: tokenStart, tag: "table"}, stateInTable},
		{token{kind: tokenStart, tag: "tr"}, stateInRow},
		{token{kind: tokenStart, tag: "td"}, stateInCell},
		{token{kind: tokenStart, tag: "font", color: HighlightColor}, stateInCell},
		{token{kind: tokenText, text: "  Пнд "}, stateInCell},
		{token{kind: tokenEnd, tag: "font"}, stateInCell},
		{token{kind: tokenEnd, tag: "td"}, stateInRow},
		{token{kind: tokenStart, tag: "td"}, stateInCell},
		{token{kind: tokenText, text: "_"}, stateInCell},
		{token{kind: tokenStart, tag: "td"}, stateInCell},
		{token{kind: tokenEnd, tag: "tr"}, stateInTable},
		{token{kind: tokenEnd, tag: "table"}, stateOutside},
	}

	for i, st := range steps {
		s, acc = step(s, acc, st.tok)
		if s != st.want {
			t.Fatalf("step %d: state = %s, want %s", i, s, st.want)
		}
	}

	require.Len(t, acc.rows, 1)
	row := acc.rows[0]
	assert.True(t, row.highlighted)
	assert.Equal(t, []Cell{
		{Text: "Пнд", Highlighted: true},
		{Text: "_"},
		{Text: ""},
	}, row.cells)
}

func TestStep_DoesNotMutatePreviousAccumulator(t *testing.T) {
	s, acc := step(stateOutside, accumulator{}, token{kind: tokenStart, tag: "table"})
	s, acc = step(s, acc, token{kind: tokenStart, tag: "tr"})
	s, acc = step(s, acc, token{kind: tokenStart, tag: "td"})

	before := acc
	_, after := step(s, acc, token{kind: tokenText, text: "Пнд"})

	assert.Equal(t, "", before.text)
	assert.Equal(t, "Пнд", after.text)
}

func TestStep_EOFWithoutCellsRecordsNothing(t *testing.T) {
	s, acc := step(stateOutside, accumulator{}, token{kind: tokenStart, tag: "table"})
	s, acc = step(s, acc, token{kind: tokenStart, tag: "tr"})
	s, acc = step(s, acc, token{kind: tokenEOF})

	assert.Equal(t, stateOutside, s)
	assert.Empty(t, acc.rows)
}

func TestExtractMeta(t *testing.T) {
	meta, err := ExtractMeta(loadFixture(t))
	require.NoError(t, err)
	assert.Equal(t, "106", meta.Title)
	assert.Equal(t, "1123", meta.GroupLabel)
	assert.True(t, meta.MatchesGroup("1123"))
	assert.False(t, meta.MatchesGroup("1124"))
	assert.True(t, meta.MatchesGroup(""))
}
