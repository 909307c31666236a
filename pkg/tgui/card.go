package tgui

import "strings"

// Card accumulates the lines of one HTML message.
type Card struct {
	lines []string
}

func NewCard() *Card { return &Card{} }

// Title adds a bold title line. Emoji is optional.
func (c *Card) Title(emoji, title string) *Card {
	t := strings.TrimSpace(title)
	if t == "" {
		return c
	}
	if e := strings.TrimSpace(emoji); e != "" {
		t = e + " " + t
	}
	c.lines = append(c.lines, B(t).String())
	return c
}

// Line adds an escaped text line.
func (c *Card) Line(s string) *Card {
	c.lines = append(c.lines, Esc(s).String())
	return c
}

// HTML adds a line of prebuilt HTML.
func (c *Card) HTML(h H) *Card {
	c.lines = append(c.lines, h.String())
	return c
}

// Blank inserts an empty line.
func (c *Card) Blank() *Card {
	c.lines = append(c.lines, "")
	return c
}

// KV adds a "<b>key:</b> value" row. Empty values are skipped.
func (c *Card) KV(key string, value H) *Card {
	key = strings.TrimSpace(key)
	if key == "" || strings.TrimSpace(value.String()) == "" {
		return c
	}
	c.lines = append(c.lines, B(key+":").String()+" "+value.String())
	return c
}

// Footer adds an italic footer separated by a blank line.
func (c *Card) Footer(s string) *Card {
	if s = strings.TrimSpace(s); s == "" {
		return c
	}
	return c.Blank().HTML(I(s))
}

// String joins the lines, dropping leading and trailing blank lines.
func (c *Card) String() string {
	return strings.Trim(strings.Join(c.lines, "\n"), "\n")
}
