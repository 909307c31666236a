package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listingbot/internal/monitor"
	"listingbot/internal/router"
	"listingbot/internal/scheduler"
	"listingbot/internal/storage"
	"listingbot/pkg/logx"
)

// checkTimeout bounds the /check handler. The cycle itself ends only at shutdown.
const checkTimeout = 10 * time.Minute

func (a *App) commands() []router.Command {
	return []router.Command{
		{
			Name:        "setchannel",
			Description: "Post new listings in this chat",
			Usage:       "/setchannel",
			Access:      router.AccessOwnerOnly,
			Handle:      a.cmdSetChannel,
		},
		{
			Name:        "status",
			Description: "Show monitor status",
			Usage:       "/status",
			Access:      router.AccessEveryone,
			Handle:      a.cmdStatus,
		},
		{
			Name:        "interval",
			Description: "Set the check interval (min 60 seconds)",
			Usage:       "/interval <seconds>",
			Access:      router.AccessOwnerOnly,
			Handle:      a.cmdInterval,
		},
		{
			Name:        "check",
			Description: "Check for new listings now",
			Usage:       "/check",
			Access:      router.AccessOwnerOnly,
			Timeout:     checkTimeout,
			Handle:      a.cmdCheck,
		},
		{
			Name:        "reset",
			Description: "Forget all cached listings",
			Usage:       "/reset",
			Access:      router.AccessOwnerOnly,
			Handle:      a.cmdReset,
		},
	}
}

func (a *App) cmdSetChannel(ctx context.Context, req *router.Request) error {
	err := a.setTarget(ctx, req.Chat)
	a.audit(ctx, req, "setchannel", encodeTarget(req.Chat), err)
	if err != nil {
		return err
	}
	return req.ReplyHTML(ctx, "✅ <b>Channel set</b>\nNew listings will be posted in this chat.")
}

func (a *App) cmdStatus(ctx context.Context, req *router.Request) error {
	return req.ReplyHTML(ctx, a.statusText())
}

func (a *App) cmdInterval(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return req.ReplyHTML(ctx, fmt.Sprintf("Current interval: %s\nUsage: <code>/interval &lt;seconds&gt;</code>",
			describeInterval(a.sched.Interval())))
	}
	raw := strings.Join(req.Args, " ")
	d, err := scheduler.ParseInterval(raw)
	if err == nil {
		err = a.setInterval(ctx, d)
	}
	a.audit(ctx, req, "interval", raw, err)
	switch {
	case errors.Is(err, scheduler.ErrIntervalTooShort):
		return req.ReplyText(ctx, "⚠️ Interval must be at least 60 seconds to avoid rate limiting.")
	case err != nil:
		return err
	}
	return req.ReplyHTML(ctx, "✅ <b>Interval updated</b>\nCheck interval set to "+describeInterval(d))
}

func (a *App) cmdCheck(ctx context.Context, req *router.Request) error {
	if a.mon.Running() {
		return req.ReplyText(ctx, "⏳ A check is already running.")
	}
	_ = req.ReplyText(ctx, "🔍 Checking for new listings...")

	res := a.mon.Check(ctx, monitor.Request{Trigger: monitor.TriggerManual, Fallback: req.Chat})
	var err error
	if res.FetchErr != nil {
		err = res.FetchErr
	}
	a.audit(ctx, req, "check", string(res.Status), err)

	return req.ReplyText(ctx, checkReply(res))
}

func checkReply(res monitor.Result) string {
	switch res.Status {
	case monitor.StatusSkipped:
		return "⏳ A check is already running."
	case monitor.StatusFetchFailed:
		return "❌ Failed to fetch listings. Check API endpoint and connection."
	case monitor.StatusNoTarget:
		return "⚠️ No notification channel. Use /setchannel first."
	}
	var b strings.Builder
	switch {
	case res.New == 0:
		b.WriteString("✅ Check complete. No new listings found.")
	case res.Suppressed:
		fmt.Fprintf(&b, "✅ Found %d listing(s) on the first run. Cached without posting.", res.New)
	default:
		fmt.Fprintf(&b, "✅ Found %d new listing(s). Posted %d.", res.New, res.Delivered)
		if res.Failed > 0 {
			fmt.Fprintf(&b, " %d failed to post.", res.Failed)
		}
	}
	if res.CacheErr != nil {
		b.WriteString("\n⚠️ Cache could not be saved; listings may be announced again after a restart.")
	}
	return b.String()
}

func (a *App) cmdReset(ctx context.Context, req *router.Request) error {
	err := a.mon.Reset(ctx)
	a.audit(ctx, req, "reset", "", err)
	if errors.Is(err, monitor.ErrCheckRunning) {
		return req.ReplyText(ctx, "⏳ A check is running. Try again when it finishes.")
	}
	if err != nil {
		return err
	}
	return req.ReplyHTML(ctx, "✅ <b>Cache reset</b>\nAll listings will be considered new on the next check.")
}

func (a *App) audit(ctx context.Context, req *router.Request, action, target string, err error) {
	e := storage.AuditEntry{
		At:            time.Now(),
		ActorID:       req.FromID,
		ActorUsername: req.FromUsername,
		ChatID:        req.Chat.ChatID,
		ThreadID:      req.Chat.ThreadID,
		Action:        action,
		Target:        target,
		OK:            err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := a.store.AppendAudit(context.WithoutCancel(ctx), e); aerr != nil {
		a.log.Warn("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}

func describeInterval(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d seconds (%d minutes)", secs, secs/60)
}
