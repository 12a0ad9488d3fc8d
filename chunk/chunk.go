// Package chunk packs document text into pieces small enough for a single
// translation request keeping paragraph boundaries.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

// DefaultMaxSize is maximum chunk size in runes.
const DefaultMaxSize = 45000

const separator = "\n\n"

var paragraphSeparator = regexp.MustCompile(`\n\s*\n`)

// Chunk is a piece of text sent for translation as a whole.
type Chunk struct {
	Text string
	// Paragraph is index of the first paragraph in the chunk.
	Paragraph int
	// Continued is set when chunk holds continuation of paragraph started by
	// previous chunk, such chunks are glued back without paragraph break.
	Continued bool
	// Complete is set when chunk holds exactly one whole paragraph.
	Complete bool
}

// Splitter cuts text into chunks.
type Splitter struct {
	MaxSize   int
	tokenizer *sentences.DefaultSentenceTokenizer
}

// New returns splitter producing chunks up to maxSize runes. When sentence
// tokenizer cannot be loaded long paragraphs are cut at rune boundaries.
func New(maxSize int, log *zap.Logger) *Splitter {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer, long paragraphs will be cut by size", zap.Error(err))
		tok = nil
	}
	return &Splitter{MaxSize: maxSize, tokenizer: tok}
}

// Paragraphs splits text on blank lines dropping empty paragraphs.
func Paragraphs(text string) []string {
	var res []string
	for _, p := range paragraphSeparator.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}

// Split packs paragraphs into chunks joined by blank line. Paragraph longer
// than MaxSize is split by sentences (or hard cuts when a sentence alone is
// too long) into continued chunks.
func (s *Splitter) Split(text string) []Chunk {
	var (
		chunks  []Chunk
		current []string
		size    int
		first   int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:      strings.Join(current, separator),
			Paragraph: first,
			Complete:  len(current) == 1,
		})
		current, size = nil, 0
	}

	for i, p := range Paragraphs(text) {
		n := utf8.RuneCountInString(p)
		if n > s.MaxSize {
			flush()
			for j, piece := range s.splitLong(p) {
				chunks = append(chunks, Chunk{Text: piece, Paragraph: i, Continued: j > 0})
			}
			continue
		}
		extra := n
		if len(current) > 0 {
			extra += len(separator)
		}
		if size+extra > s.MaxSize {
			flush()
			extra = n
		}
		if len(current) == 0 {
			first = i
		}
		current = append(current, p)
		size += extra
	}
	flush()
	return chunks
}

// splitLong packs sentences of a paragraph into pieces of at most MaxSize
// runes.
func (s *Splitter) splitLong(p string) []string {
	var (
		pieces  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, sentence := range s.sentences(p) {
		n := utf8.RuneCountInString(sentence)
		if n > s.MaxSize {
			flush()
			pieces = append(pieces, cut(sentence, s.MaxSize)...)
			continue
		}
		extra := n
		if size > 0 {
			extra++
		}
		if size+extra > s.MaxSize {
			flush()
			extra = n
		}
		if size > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
		size += extra
	}
	flush()
	return pieces
}

func (s *Splitter) sentences(p string) []string {
	if s.tokenizer == nil {
		return []string{p}
	}
	var res []string
	for _, sentence := range s.tokenizer.Tokenize(p) {
		if t := strings.TrimSpace(sentence.Text); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// cut splits text into pieces of at most size runes.
func cut(text string, size int) []string {
	var pieces []string
	runes := []rune(text)
	for len(runes) > size {
		pieces = append(pieces, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

// Statistics describes chunking result.
type Statistics struct {
	Chunks     int     `json:"total_chunks"`
	Characters int     `json:"total_characters"`
	Average    float64 `json:"average_chunk_size"`
	Max        int     `json:"max_chunk_size"`
	Min        int     `json:"min_chunk_size"`
	Complete   int     `json:"complete_paragraphs"`
}

// ComputeStatistics returns sizes of chunks in runes.
func ComputeStatistics(chunks []Chunk) Statistics {
	var st Statistics
	st.Chunks = len(chunks)
	for i, c := range chunks {
		n := utf8.RuneCountInString(c.Text)
		st.Characters += n
		if i == 0 || n < st.Min {
			st.Min = n
		}
		st.Max = max(st.Max, n)
		if c.Complete {
			st.Complete++
		}
	}
	if st.Chunks > 0 {
		st.Average = float64(st.Characters) / float64(st.Chunks)
	}
	return st
}

// Fields returns statistics as log fields.
func (s Statistics) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("chunks", s.Chunks),
		zap.Int("characters", s.Characters),
		zap.Float64("average", s.Average),
		zap.Int("max", s.Max),
		zap.Int("min", s.Min),
		zap.Int("complete paragraphs", s.Complete),
	}
}
