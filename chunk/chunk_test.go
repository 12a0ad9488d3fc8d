package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newSplitter(t *testing.T, size int) *Splitter {
	return New(size, zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller())))
}

// glue restores text from chunks the way translated blocks are glued.
func glue(chunks []Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			if c.Continued {
				sb.WriteString(" ")
			} else {
				sb.WriteString(separator)
			}
		}
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func TestSplit_Packing(t *testing.T) {
	s := newSplitter(t, 12)
	text := "aaaa\n\nbbbb\n \n\ncccc\n\n\n\ndddddddddd"
	chunks := s.Split(text)

	want := []string{"aaaa\n\nbbbb", "cccc", "dddddddddd"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks: %+v", len(chunks), chunks)
	}
	for i := range want {
		if chunks[i].Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i].Text, want[i])
		}
		if chunks[i].Continued {
			t.Errorf("chunk %d marked continued", i)
		}
	}
	if chunks[1].Paragraph != 2 || !chunks[1].Complete || chunks[0].Complete {
		t.Errorf("chunk metadata %+v", chunks)
	}
	if got := glue(chunks); got != strings.Join(Paragraphs(text), "\n\n") {
		t.Errorf("glued %q", got)
	}
}

func TestSplit_LongParagraph(t *testing.T) {
	s := newSplitter(t, 40)
	p := "The first sentence is here. The second one follows it. And the third closes it."
	chunks := s.Split("Intro.\n\n" + p + "\n\nOutro.")

	if chunks[0].Text != "Intro." || chunks[len(chunks)-1].Text != "Outro." {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
	long := chunks[1 : len(chunks)-1]
	if len(long) < 2 {
		t.Fatalf("long paragraph not split: %+v", long)
	}
	for i, c := range long {
		if utf8.RuneCountInString(c.Text) > 40 {
			t.Errorf("chunk %q exceeds limit", c.Text)
		}
		if c.Continued != (i > 0) || c.Paragraph != 1 {
			t.Errorf("chunk %d metadata %+v", i, c)
		}
	}
	if got := glue(long); got != p {
		t.Errorf("glued %q, want %q", got, p)
	}
}

func TestSplit_HardCut(t *testing.T) {
	s := newSplitter(t, 4)
	chunks := s.Split("абвгдежзи")
	if len(chunks) != 3 || chunks[0].Text != "абвг" || chunks[2].Text != "и" || !chunks[2].Continued {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := newSplitter(t, 0).Split(" \n\n \t"); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %+v", chunks)
	}
}

func TestCut(t *testing.T) {
	if got := cut("abcdef", 2); strings.Join(got, ",") != "ab,cd,ef" {
		t.Errorf("cut() = %v", got)
	}
}

func TestComputeStatistics(t *testing.T) {
	st := ComputeStatistics([]Chunk{{Text: "ab", Complete: true}, {Text: "абвг"}})
	if st.Chunks != 2 || st.Characters != 6 || st.Max != 4 || st.Min != 2 || st.Average != 3 || st.Complete != 1 {
		t.Errorf("statistics %+v", st)
	}
	if st := ComputeStatistics(nil); st.Chunks != 0 || st.Average != 0 {
		t.Errorf("empty statistics %+v", st)
	}
}
