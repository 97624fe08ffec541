package scrollback

import (
	"reflect"
	"sync"
	"testing"

	"github.com/user/termcore/internal/parser"
)

func TestAppendPreservesOrder(t *testing.T) {
	l := New()
	l.Append(parser.Batch{parser.Text("a"), parser.Control("\x1b[1m")})
	l.Append(nil)
	l.Append(parser.Batch{parser.Text("b")})

	got := l.Tokens()
	want := []parser.Token{parser.Text("a"), parser.Control("\x1b[1m"), parser.Text("b")}
	if len(got) != len(want) {
		t.Fatalf("Tokens() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAppendCopiesBatch(t *testing.T) {
	l := New()
	batch := parser.Batch{parser.Text("one")}
	l.Append(batch)
	batch[0] = parser.Text("mutated")

	if got := l.Tokens()[0].Content; got != "one" {
		t.Fatalf("log token = %q, want %q", got, "one")
	}
}

func TestHandleSignalClears(t *testing.T) {
	l := New()
	l.Append(parser.TokenizeString("before\x1b[31mred"))

	l.HandleSignal(parser.NoHandle)
	if l.Len() == 0 {
		t.Fatal("NoHandle cleared the log")
	}

	l.HandleSignal(parser.ClearScreen)
	if l.Len() != 0 {
		t.Fatalf("Len() after clear = %d, want 0", l.Len())
	}
	count := 0
	l.Each(func(parser.Token) bool { count++; return true })
	if count != 0 {
		t.Fatalf("Each visited %d tokens after clear", count)
	}
	if l.Clears() != 1 {
		t.Errorf("Clears() = %d, want 1", l.Clears())
	}

	l.Append(parser.Batch{parser.Text("after")})
	if got := l.Text(); got != "after" {
		t.Errorf("Text() = %q, want %q", got, "after")
	}
}

func TestSnapshotSurvivesClear(t *testing.T) {
	l := New()
	l.Append(parser.Batch{parser.Text("kept")})
	snap := l.Tokens()
	l.Clear()

	if snap[0].Content != "kept" {
		t.Fatalf("snapshot changed after clear: %q", snap[0].Content)
	}
	if l.Tokens() != nil {
		t.Fatal("Tokens() after clear should be nil")
	}
}

func TestEachStopsEarly(t *testing.T) {
	l := New()
	l.Append(parser.Batch{parser.Text("a"), parser.Text("b"), parser.Text("c")})

	var seen []string
	l.Each(func(tok parser.Token) bool {
		seen = append(seen, tok.Content)
		return len(seen) < 2
	})
	if len(seen) != 2 {
		t.Fatalf("visited %d tokens, want 2", len(seen))
	}
}

func TestTextAndTail(t *testing.T) {
	l := New()
	l.Append(parser.TokenizeString("line1\r\n\x1b[32mline2\x1b[0m\r\nline3"))

	if got := l.Text(); got != "line1\nline2\nline3" {
		t.Fatalf("Text() = %q", got)
	}
	tail := l.Tail(2)
	if len(tail) != 2 || tail[0] != "line2" || tail[1] != "line3" {
		t.Errorf("Tail(2) = %q", tail)
	}
}

func TestTailIgnoresTrailingNewline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  []string
	}{
		{"empty", "", 1, []string{}},
		{"bare newline", "\r\n", 1, []string{}},
		{"last line", "a\r\nb\r\n", 1, []string{"b"}},
		{"all lines", "a\r\nb\r\n", 0, []string{"a", "b"}},
		{"blank line kept", "a\r\n\r\n", 2, []string{"a", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			l.Append(parser.TokenizeString(tt.input))
			if got := l.Tail(tt.n); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tail(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestConcurrentAppendAndIterate(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			l.Append(parser.Batch{parser.Text("x")})
			if i%100 == 0 {
				l.HandleSignal(parser.ClearScreen)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			l.Each(func(tok parser.Token) bool {
				if tok.Content != "x" {
					t.Errorf("unexpected token %q", tok.Content)
					return false
				}
				return true
			})
		}
	}()
	wg.Wait()
}
