package memory

import (
	"strings"
	"testing"
	"time"
)

func TestCountTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{"héllo", 2}, // runes, not bytes
	}
	for _, tt := range tests {
		if got := CountTokens(tt.in); got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTokenize_JoinsBackToInput(t *testing.T) {
	for _, s := range []string{"", "abc", "abcdefghij", "日本語のテキストです"} {
		tokens := Tokenize(s)
		if len(tokens) != CountTokens(s) {
			t.Errorf("Tokenize(%q) gave %d tokens, CountTokens says %d", s, len(tokens), CountTokens(s))
		}
		if got := strings.Join(tokens, ""); got != s {
			t.Errorf("join(Tokenize(%q)) = %q", s, got)
		}
	}
}

func TestKeepTail(t *testing.T) {
	s := "aaaabbbbccccdddd"
	if got := KeepTail(s, 4); got != s {
		t.Errorf("fits: got %q", got)
	}
	got := KeepTail(s, 2)
	if got != TruncatedPrefix+"ccccdddd" {
		t.Errorf("KeepTail = %q", got)
	}
}

func TestKeepHead(t *testing.T) {
	s := "aaaabbbbccccdddd"
	if got := KeepHead(s, 10); got != s {
		t.Errorf("fits: got %q", got)
	}
	if got := KeepHead(s, 1); got != "aaaa"+TruncatedSuffix {
		t.Errorf("KeepHead = %q", got)
	}
}

func TestMessageTokens_IncludesSenderAndOverhead(t *testing.T) {
	m := NewMessage("bob", strings.Repeat("x", 40), time.Now())
	if got := m.Tokens(); got != 10+1+messageOverhead {
		t.Errorf("Tokens() = %d, want %d", got, 10+1+messageOverhead)
	}
}
