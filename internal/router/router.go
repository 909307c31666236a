// Package router parses chat commands and dispatches them to handlers on a
// bounded worker pool.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"listingbot/internal/transport"
	"listingbot/pkg/logx"
	"listingbot/pkg/tgui"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

const defaultTimeout = 30 * time.Second

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // 0 means defaultTimeout; negative disables
	Handle      HandlerFunc
}

type Request struct {
	Update       transport.Update
	Chat         transport.ChatTarget
	FromID       int64
	FromUsername string
	Command      string
	Args         []string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Logger logx.Logger
	Sender transport.Sender
}

// ReplyHTML answers in the issuing chat (and thread) with HTML formatting.
func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// ReplyText answers without formatting.
func (r *Request) ReplyText(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, &transport.SendOptions{DisablePreview: true})
	return err
}

type Manager struct {
	mu     sync.RWMutex
	cmds   map[string]*Command
	alias  map[string]*Command
	order  []string
	owners []int64

	log    logx.Logger
	sender transport.Sender

	jobs chan func()
}

func New(log logx.Logger, sender transport.Sender, owners []int64) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		cmds:   map[string]*Command{},
		alias:  map[string]*Command{},
		owners: append([]int64(nil), owners...),
		log:    log,
		sender: sender,
		jobs:   make(chan func(), 64),
	}
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during hot reload.
func (m *Manager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *Manager) ownersSnapshot() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64(nil), m.owners...)
}

// IsOwner reports whether id is in the current owner list.
func (m *Manager) IsOwner(id int64) bool {
	return isOwner(id, m.ownersSnapshot())
}

// SetCommands replaces the registry. A /help command is always injected.
func (m *Manager) SetCommands(cmds []Command) {
	helper := Command{
		Name:        "help",
		Aliases:     []string{"start"},
		Description: "Show this help message",
		Usage:       "/help",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, m.helpText())
		},
	}
	cmds = append(cmds, helper)

	byName := map[string]*Command{}
	alias := map[string]*Command{}
	var order []string
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		cc := c
		cc.Name = name
		if _, dup := byName[name]; !dup {
			order = append(order, name)
		}
		byName[name] = &cc
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			alias[a] = &cc
		}
	}

	m.mu.Lock()
	m.cmds = byName
	m.alias = alias
	m.order = order
	m.mu.Unlock()
}

// Commands returns the registry in registration order.
func (m *Manager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Command, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, *m.cmds[n])
	}
	return out
}

// MenuCommands returns the entries for the chat command menu.
func (m *Manager) MenuCommands() []transport.BotCommand {
	cmds := m.Commands()
	out := make([]transport.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

func (m *Manager) lookup(word string) (*Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cmds[word]; ok {
		return c, true
	}
	c, ok := m.alias[word]
	return c, ok
}

// DispatchLoop routes updates until ctx is done or updates is closed.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 4 {
		workers = 4
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-m.jobs:
					m.runJob(idx, job)
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *Manager) runJob(idx int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command worker", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	if job != nil {
		job()
	}
}

func (m *Manager) routeUpdate(ctx context.Context, up transport.Update) {
	if up.Kind != transport.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return
	}
	chat := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := m.lookup(word)
	if !ok {
		_, _ = m.sender.SendText(ctx, chat, "Unknown command. Try /help", nil)
		return
	}
	raw := parts[1:]
	pos, flags, bools := parseFlags(raw)
	rid := newReqID()
	req := &Request{
		Update:       up,
		Chat:         chat,
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		Command:      cmd.Name,
		Args:         pos,
		RawArgs:      raw,
		Flags:        flags,
		BoolFlags:    bools,
		ReqID:        rid,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int("thread_id", msg.ThreadID),
			logx.Int64("from_id", msg.FromID),
		),
		Sender: m.sender,
	}

	final := m.pipeline(cmd)
	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		_, _ = m.sender.SendText(ctx, chat, "Busy, try again in a moment.", nil)
	}
}

func (m *Manager) helpText() string {
	c := tgui.NewCard().Title("📚", "Commands").Blank()
	owner := false
	for _, cmd := range m.Commands() {
		usage := cmd.Usage
		if usage == "" {
			usage = "/" + cmd.Name
		}
		line := tgui.JoinH(" - ", tgui.Code(usage), tgui.Esc(cmd.Description))
		if cmd.Access == AccessOwnerOnly {
			line += " (owner only)"
			owner = true
		}
		c.HTML(line)
	}
	if owner {
		c.Footer("Commands marked (owner only) require an owner user id from the config.")
	}
	return c.String()
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}
