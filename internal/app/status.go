package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"listingbot/internal/httpapi"
	"listingbot/internal/monitor"
	"listingbot/pkg/tgui"
)

func (a *App) statusText() string {
	st := a.mon.State()
	c := tgui.NewCard().Title("📦", "Listing Monitor Status").Blank()

	channel := tgui.Esc("not set (use /setchannel)")
	if !st.Target.IsZero() {
		channel = tgui.Code(strconv.FormatInt(st.Target.ChatID, 10))
		if st.Target.ThreadID != 0 {
			channel += tgui.Esc(fmt.Sprintf(" (thread %d)", st.Target.ThreadID))
		}
	}
	c.KV("Notification channel", channel).
		KV("Check interval", tgui.Esc(describeInterval(a.sched.Interval()))).
		KV("Cached listings", tgui.Esc(humanize.Comma(int64(st.Cached))))

	switch next := a.sched.Next(); {
	case st.Running:
		c.KV("Monitoring", tgui.Esc("🟡 checking now"))
	case !next.IsZero():
		c.KV("Monitoring", tgui.Esc("🟢 active, next check "+humanize.Time(next)))
	default:
		c.KV("Monitoring", tgui.Esc("🔴 inactive"))
	}

	if r := st.Last; r != nil {
		c.KV("Last check", tgui.Esc(fmt.Sprintf("%s (%s, %s)", humanize.Time(r.FinishedAt), r.Status, r.Trigger)))
		if r.Status == monitor.StatusOK {
			res := fmt.Sprintf("%d fetched, %d new, %d posted", r.Fetched, r.New, r.Delivered)
			if r.Failed > 0 {
				res += fmt.Sprintf(", %d failed", r.Failed)
			}
			c.KV("Last result", tgui.Esc(res))
		}
		if r.FetchErr != nil {
			c.KV("Last error", tgui.Esc(r.FetchErr.Error()))
		}
		if r.CacheErr != nil {
			c.KV("Cache error", tgui.Esc(r.CacheErr.Error()))
		}
	}
	if !a.started.IsZero() {
		c.KV("Up since", tgui.Esc(humanize.Time(a.started)))
	}
	return c.String()
}

// Status implements httpapi.Backend.
func (a *App) Status() httpapi.Status {
	st := a.mon.State()
	out := httpapi.Status{
		Cached:   st.Cached,
		Running:  st.Running,
		ChatID:   st.Target.ChatID,
		ThreadID: st.Target.ThreadID,
		Interval: int64(a.sched.Interval() / time.Second),
	}
	if next := a.sched.Next(); !next.IsZero() {
		out.NextCheck = &next
	}
	if !st.LastRun.IsZero() {
		t := st.LastRun
		out.LastRun = &t
	}
	if st.Last != nil {
		out.Last = httpapi.ResultJSON(*st.Last)
	}
	if !a.started.IsZero() {
		out.Uptime = time.Since(a.started).Truncate(time.Second).String()
	}
	return out
}

// CheckNow implements httpapi.Backend.
func (a *App) CheckNow(ctx context.Context) monitor.Result {
	return a.mon.Check(ctx, monitor.Request{Trigger: monitor.TriggerHTTP})
}
