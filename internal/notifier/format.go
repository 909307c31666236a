package notifier

import (
	"strings"
	"unicode/utf8"

	"listingbot/internal/listing"
	"listingbot/pkg/tgui"
)

const (
	nameLimit        = 256
	descriptionLimit = 200
	captionLimit     = 1024
)

// Render builds the HTML card for a new product.
func Render(s listing.Snapshot, footer string) string {
	return render(s, footer, true)
}

func render(s listing.Snapshot, footer string, withDescription bool) string {
	name := tgui.TruncRunes(strings.TrimSpace(s.Name), nameLimit, "...")
	if name == "" {
		name = "Unknown"
	}
	c := tgui.NewCard().
		HTML(tgui.B("🆕 New listing")).
		Blank().
		HTML(tgui.Link(name, strings.TrimSpace(s.URL)))
	if s.HasPrice() {
		c.Line("💰 " + s.Price)
	}
	if withDescription {
		if d := tgui.TruncRunes(strings.TrimSpace(s.Description), descriptionLimit, "..."); d != "" {
			c.Blank().Line("📝 " + d)
		}
	}
	return c.Footer(footer).String()
}

// caption renders a card that fits a photo caption, dropping the
// description when needed. ok is false when even the short card is too long.
func caption(s listing.Snapshot, footer string) (text string, ok bool) {
	text = render(s, footer, true)
	if utf8.RuneCountInString(text) <= captionLimit {
		return text, true
	}
	text = render(s, footer, false)
	return text, utf8.RuneCountInString(text) <= captionLimit
}
