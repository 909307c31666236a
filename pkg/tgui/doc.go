// Package tgui builds Telegram HTML (ParseMode "HTML") message text.
//
// Values of type H are already escaped; plain strings passed to the
// helpers are escaped on the way in.
package tgui
