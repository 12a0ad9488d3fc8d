package reconstruct

import (
	"unicode/utf8"

	"go.uber.org/zap"
)

// Statistics describes source element list.
type Statistics struct {
	Elements   int `json:"total_elements"`
	Characters int `json:"total_characters"`
	Paragraphs int `json:"paragraphs"`
	Tables     int `json:"tables"`
	Images     int `json:"images"`
	// AverageSize is average number of characters per text element.
	AverageSize float64 `json:"average_element_size"`
}

// ComputeStatistics counts elements by kind and characters of text elements.
func ComputeStatistics(elements []Element) Statistics {
	var st Statistics
	st.Elements = len(elements)
	for i := range elements {
		switch elements[i].Kind {
		case KindImage:
			st.Images++
			continue
		case KindTable:
			st.Tables++
		default:
			st.Paragraphs++
		}
		st.Characters += utf8.RuneCountInString(elements[i].Content)
	}
	if text := st.Paragraphs + st.Tables; text > 0 {
		st.AverageSize = float64(st.Characters) / float64(text)
	}
	return st
}

// Fields returns statistics as log fields.
func (s Statistics) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("elements", s.Elements),
		zap.Int("characters", s.Characters),
		zap.Int("paragraphs", s.Paragraphs),
		zap.Int("tables", s.Tables),
		zap.Int("images", s.Images),
		zap.Float64("average size", s.AverageSize),
	}
}
