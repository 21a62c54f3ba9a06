package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GroupLabelColor цвет шрифта, которым на странице выведен номер группы
const GroupLabelColor = "#ff00ff"

// PageMeta метаданные страницы расписания
type PageMeta struct {
	Title      string
	GroupLabel string
}

// ExtractMeta достает заголовок страницы и подпись группы
func ExtractMeta(markup string) (PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return PageMeta{}, fmt.Errorf("failed to parse schedule page: %w", err)
	}

	meta := PageMeta{
		Title: collapseSpaces(normalizeCellText(doc.Find("title").First().Text())),
	}

	doc.Find("font").EachWithBreak(func(i int, s *goquery.Selection) bool {
		color, ok := s.Attr("color")
		if !ok || !strings.EqualFold(strings.TrimSpace(color), GroupLabelColor) {
			return true
		}
		meta.GroupLabel = collapseSpaces(normalizeCellText(s.Text()))
		return meta.GroupLabel == ""
	})

	return meta, nil
}

// MatchesGroup сравнивает подпись на странице с названием группы
func (m PageMeta) MatchesGroup(name string) bool {
	if m.GroupLabel == "" || name == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(name), m.GroupLabel)
}
