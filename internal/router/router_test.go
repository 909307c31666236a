package router

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"listingbot/internal/transport"
	"listingbot/pkg/logx"
)

type recordSender struct {
	out chan string
}

func newRecordSender() *recordSender { return &recordSender{out: make(chan string, 16)} }

func (s *recordSender) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	s.out <- text
	return transport.MessageRef{}, nil
}

func (s *recordSender) next(t *testing.T) string {
	t.Helper()
	select {
	case v := <-s.out:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply")
		return ""
	}
}

func msg(from int64, text string) transport.Update {
	return transport.Update{Kind: transport.UpdateMessage, Message: &transport.Message{ChatID: -100, ThreadID: 2, FromID: from, Text: text}}
}

func startManager(t *testing.T, owners []int64, cmds []Command) (*recordSender, chan<- transport.Update) {
	t.Helper()
	s := newRecordSender()
	m := New(logx.Nop(), s, owners)
	m.SetCommands(cmds)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan transport.Update)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, updates
}

func TestTokenizeCommandLine(t *testing.T) {
	got := tokenizeCommandLine(`/interval  300 "a b" 'c d' e\ f`)
	want := []string{"/interval", "300", "a b", "c d", "e f"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if tokenizeCommandLine("   ") != nil {
		t.Fatalf("blank input should yield nil")
	}
}

func TestParseFlags(t *testing.T) {
	pos, flags, bools := parseFlags([]string{"300", "--force", "-k=v", "--name", "x", "-ab", "-60"})
	if !reflect.DeepEqual(pos, []string{"300", "-60"}) {
		t.Fatalf("pos = %q", pos)
	}
	if flags["k"] != "v" || flags["name"] != "x" {
		t.Fatalf("flags = %v", flags)
	}
	if !bools["force"] || !bools["a"] || !bools["b"] {
		t.Fatalf("bools = %v", bools)
	}
}

func TestDispatchRunsCommandWithArgs(t *testing.T) {
	var got *Request
	s, updates := startManager(t, nil, []Command{{
		Name: "interval",
		Handle: func(ctx context.Context, req *Request) error {
			got = req
			return req.ReplyText(ctx, "ok "+strings.Join(req.Args, ","))
		},
	}})

	updates <- msg(1, "/interval@listing_bot 300")
	if r := s.next(t); r != "ok 300" {
		t.Fatalf("reply = %q", r)
	}
	if got.Chat != (transport.ChatTarget{ChatID: -100, ThreadID: 2}) || got.ReqID == "" || got.Command != "interval" {
		t.Fatalf("request = %+v", got)
	}
}

func TestOwnerOnlyCommands(t *testing.T) {
	called := make(chan struct{}, 1)
	s, updates := startManager(t, []int64{42}, []Command{{
		Name:   "reset",
		Access: AccessOwnerOnly,
		Handle: func(ctx context.Context, req *Request) error {
			called <- struct{}{}
			return req.ReplyText(ctx, "done")
		},
	}})

	updates <- msg(7, "/reset")
	if r := s.next(t); !strings.Contains(r, "restricted") {
		t.Fatalf("reply = %q", r)
	}
	select {
	case <-called:
		t.Fatalf("handler ran for non-owner")
	default:
	}

	updates <- msg(42, "/reset")
	if r := s.next(t); r != "done" {
		t.Fatalf("reply = %q", r)
	}
}

func TestUnknownCommandAndPlainText(t *testing.T) {
	s, updates := startManager(t, nil, nil)
	updates <- msg(1, "hello there")
	updates <- msg(1, "/nope")
	if r := s.next(t); !strings.Contains(r, "Unknown command") {
		t.Fatalf("reply = %q", r)
	}
}

func TestHandlerErrorAndPanicAreReported(t *testing.T) {
	s, updates := startManager(t, nil, []Command{
		{Name: "fail", Handle: func(context.Context, *Request) error { return errors.New("interval too short") }},
		{Name: "boom", Handle: func(context.Context, *Request) error { panic("kaboom") }},
	})

	updates <- msg(1, "/fail")
	if r := s.next(t); r != "❌ interval too short" {
		t.Fatalf("reply = %q", r)
	}
	updates <- msg(1, "/boom")
	if r := s.next(t); r != "❌ Internal error, see logs." {
		t.Fatalf("reply = %q", r)
	}
}

func TestCommandTimeoutIsReported(t *testing.T) {
	s, updates := startManager(t, nil, []Command{{
		Name:    "check",
		Timeout: 20 * time.Millisecond,
		Handle: func(ctx context.Context, _ *Request) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})

	updates <- msg(1, "/check")
	if r := s.next(t); r != "⌛ /check timed out." {
		t.Fatalf("reply = %q", r)
	}
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) error {
				trace = append(trace, name)
				return next(ctx, req)
			}
		}
	}
	h := Chain(func(context.Context, *Request) error {
		trace = append(trace, "handler")
		return nil
	}, mark("outer"), mark("inner"))

	if err := h(context.Background(), &Request{}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(trace, []string{"outer", "inner", "handler"}) {
		t.Fatalf("trace = %v", trace)
	}
}

func TestHelpListsCommands(t *testing.T) {
	s, updates := startManager(t, []int64{1}, []Command{
		{Name: "status", Description: "Show bot status", Usage: "/status", Handle: func(context.Context, *Request) error { return nil }},
		{Name: "check", Description: "Check now", Usage: "/check", Access: AccessOwnerOnly, Handle: func(context.Context, *Request) error { return nil }},
	})
	updates <- msg(5, "/start")
	r := s.next(t)
	for _, want := range []string{"/status", "Show bot status", "/check", "(owner only)", "/help"} {
		if !strings.Contains(r, want) {
			t.Fatalf("help missing %q:\n%s", want, r)
		}
	}
}

func TestMenuCommandsSorted(t *testing.T) {
	m := New(logx.Nop(), newRecordSender(), nil)
	m.SetCommands([]Command{
		{Name: "status", Description: "s", Handle: func(context.Context, *Request) error { return nil }},
		{Name: "check", Description: "c", Handle: func(context.Context, *Request) error { return nil }},
		{Name: "", Handle: func(context.Context, *Request) error { return nil }},
	})
	var names []string
	for _, c := range m.MenuCommands() {
		names = append(names, c.Command)
	}
	if !reflect.DeepEqual(names, []string{"check", "help", "status"}) {
		t.Fatalf("menu = %v", names)
	}
}
