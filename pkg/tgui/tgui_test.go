package tgui

import "testing"

func TestEscaping(t *testing.T) {
	if got := B("a<b>").String(); got != "<b>a&lt;b&gt;</b>" {
		t.Fatalf("B = %q", got)
	}
	if got := Link("x & y", "https://e.x/?a=1&b=2").String(); got != `<a href="https://e.x/?a=1&amp;b=2">x &amp; y</a>` {
		t.Fatalf("Link = %q", got)
	}
	if got := Link("plain", "").String(); got != "<b>plain</b>" {
		t.Fatalf("Link without url = %q", got)
	}
	if got := JoinH(" | ", B("a"), "", Code("b")).String(); got != "<b>a</b> | <code>b</code>" {
		t.Fatalf("JoinH = %q", got)
	}
}

func TestTruncRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel..."},
		{"ééééé", 2, "éé..."},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncRunes(tc.in, tc.n, "..."); got != tc.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestCard(t *testing.T) {
	got := NewCard().
		Title("📦", "Status").
		Blank().
		KV("Cached", Esc("3")).
		KV("Skipped", "").
		Line("a < b").
		Footer("footer").
		String()
	want := "<b>📦 Status</b>\n\n<b>Cached:</b> 3\na &lt; b\n\n<i>footer</i>"
	if got != want {
		t.Fatalf("card =\n%q\nwant\n%q", got, want)
	}
}
