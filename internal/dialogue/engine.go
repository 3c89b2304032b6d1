// Package dialogue drives the menu conversation: a per-conversation step
// machine fed by discrete text messages that manages the channel registry,
// generates links and controls the auto-unmute watch.
package dialogue

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/voiceaccess/internal/invite"
	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/supervisor"
)

// Message is one incoming text message.
type Message struct {
	ConversationID int64
	ID             int64
	Text           string
}

// Replier sends replies and returns the id of the sent message.
type Replier interface {
	Reply(ctx context.Context, chatID, replyTo int64, text string) (int64, error)
}

// Channels is the registry surface the engine uses.
type Channels interface {
	Snapshot(ctx context.Context) (*registry.Registry, error)
	Add(ctx context.Context, e registry.Entry) error
	Remove(ctx context.Context, label string) error
	SetDefault(ctx context.Context, label string) error
}

// Directory looks channels up on the platform.
type Directory interface {
	ResolveChannel(ctx context.Context, username string) (platform.Dialog, error)
	SearchDialogs(ctx context.Context, query string) ([]platform.Dialog, error)
}

// Links generates and publishes invite links.
type Links interface {
	Export(ctx context.Context, entry registry.Entry, kind invite.Kind) (string, error)
	Publish(ctx context.Context, entry registry.Entry, kind invite.Kind) (string, error)
}

// Watch controls the auto-unmute supervisor.
type Watch interface {
	Start(notify supervisor.NotifyFunc) error
	Stop(ctx context.Context) error
	Running() bool
	Status() supervisor.Status
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Replier   Replier
	Channels  Channels
	Directory Directory
	Links     Links
	Watch     Watch
}

// Options tune an Engine.
type Options struct {
	// DefaultKind is used by menu item 5 and publish.
	DefaultKind invite.Kind
	// AllowedChats restricts the conversations served; empty allows all.
	AllowedChats []int64
}

// Engine handles incoming messages.
type Engine struct {
	deps        Deps
	defaultKind invite.Kind
	allowed     []int64
	store       *ConversationStore
	log         *zerolog.Logger
	// sent recognizes echoes of messages the engine sent itself.
	sent *sentTracker
}

// New creates an engine.
func New(deps Deps, opts Options, logger *zerolog.Logger) *Engine {
	if opts.DefaultKind == "" {
		opts.DefaultKind = invite.KindSpeaker
	}
	l := logger.With().Str("component", "dialogue").Logger()
	return &Engine{
		deps:        deps,
		defaultKind: opts.DefaultKind,
		allowed:     opts.AllowedChats,
		store:       NewConversationStore(),
		log:         &l,
		sent:        newSentTracker(),
	}
}

// Conversations exposes the state store.
func (e *Engine) Conversations() *ConversationStore {
	return e.store
}

// turn is the context of one handled message.
type turn struct {
	ctx  context.Context
	conv *conversation
	msg  Message
	text string
}

// Handle processes one message. Messages of one conversation are processed
// one at a time in arrival order. Handle never panics on bad input; every
// failure becomes a reply.
func (e *Engine) Handle(ctx context.Context, msg Message) {
	if len(e.allowed) > 0 && !lo.Contains(e.allowed, msg.ConversationID) {
		e.log.Debug().Int64("chat_id", msg.ConversationID).Msg("chat not allowed")
		return
	}
	if e.sent.isOwn(msg.ConversationID, msg.ID, msg.Text) {
		return
	}

	conv := e.store.acquire(msg.ConversationID)
	defer conv.mu.Unlock()

	t := &turn{ctx: ctx, conv: conv, msg: msg, text: strings.TrimSpace(msg.Text)}

	if conv.state != nil {
		if msg.ID <= conv.state.Watermark {
			e.log.Debug().
				Int64("chat_id", msg.ConversationID).
				Int64("message_id", msg.ID).
				Int64("watermark", conv.state.Watermark).
				Msg("dropping stale message")
			return
		}
		conv.state.Watermark = msg.ID
	}

	switch strings.ToLower(t.text) {
	case "/start":
		e.showMenu(t)
		return
	case "/watch":
		e.startWatch(t)
		return
	case "/stop":
		e.stopWatch(t)
		return
	case "/status":
		e.reply(t, formatStatus(e.deps.Watch.Status()))
		return
	}

	if conv.state == nil {
		return
	}
	if t.text == "0" {
		e.showMenu(t)
		return
	}

	switch step := conv.state.Step.(type) {
	case MenuStep:
		e.onMenu(t)
	case AddTypeStep:
		e.onAddType(t)
	case AddPublicStep:
		e.onAddPublic(t)
	case AddPrivateSearchStep:
		e.onAddPrivateSearch(t)
	case AddPrivateChoiceStep:
		e.onAddPrivateChoice(t, step)
	case DeleteSelectStep:
		e.onDeleteSelect(t, step)
	case SetDefaultSelectStep:
		e.onSetDefaultSelect(t, step)
	case LinkKindSelectStep:
		e.onLinkKindSelect(t)
	default:
		e.log.Warn().Str("step", StepName(step)).Msg("unknown step, resetting")
		e.showMenu(t)
	}
}

func (e *Engine) onMenu(t *turn) {
	switch t.text {
	case "1":
		e.setStep(t, AddTypeStep{})
		e.reply(t, textChooseType)
	case "2":
		r, ok := e.snapshot(t)
		if !ok {
			return
		}
		e.reply(t, "📋 Channels:\n"+formatChannels(r))
		e.showMenu(t)
	case "3", "4":
		r, ok := e.snapshot(t)
		if !ok {
			return
		}
		if r.Len() == 0 {
			e.reply(t, textNoChannels)
			e.showMenu(t)
			return
		}
		if t.text == "3" {
			e.setStep(t, DeleteSelectStep{Labels: r.Labels()})
			e.reply(t, "🗑 Enter the number to delete (0 to cancel):\n"+formatChannels(r))
			return
		}
		e.setStep(t, SetDefaultSelectStep{Labels: r.Labels()})
		e.reply(t, "🎯 Enter the number of the default channel (0 to cancel):\n"+formatChannels(r))
	case "5":
		e.generate(t, e.defaultKind)
		e.showMenu(t)
	case "6":
		e.publish(t)
		e.showMenu(t)
	case "7":
		t.conv.state = nil
		e.reply(t, textBye)
	case "8":
		if e.deps.Watch.Running() {
			e.stopWatch(t)
		} else {
			e.startWatch(t)
		}
		e.showMenu(t)
	case "9":
		e.setStep(t, LinkKindSelectStep{})
		e.reply(t, "🎛 Link type (0 to cancel):\n"+formatKinds())
	default:
		e.reply(t, textBadMenuChoice)
	}
}

func (e *Engine) onAddType(t *turn) {
	switch t.text {
	case "1":
		e.setStep(t, AddPublicStep{})
		e.reply(t, textAskPublic)
	case "2":
		e.setStep(t, AddPrivateSearchStep{})
		e.reply(t, textAskPrivate)
	default:
		e.reply(t, textBadType)
	}
}

func (e *Engine) onAddPublic(t *turn) {
	in, ok := parsePublicAdd(t.text)
	if !ok {
		e.reply(t, textBadPublic)
		return
	}

	d, err := e.deps.Directory.ResolveChannel(t.ctx, in.Handle)
	if err != nil {
		e.log.Info().Err(err).Str("handle", in.Handle).Msg("resolve channel failed")
		if errors.Is(err, platform.ErrNotFound) {
			e.reply(t, "❌ Not found: "+in.Handle)
			return
		}
		e.reply(t, describe(err))
		return
	}

	username := d.Username
	if username == "" {
		username = strings.TrimPrefix(in.Handle, "@")
	}
	entry := registry.Entry{
		Label:      in.Label,
		ID:         d.ID,
		AccessHash: d.AccessHash,
		Kind:       registry.KindPublic,
		Username:   username,
	}
	if err := e.deps.Channels.Add(t.ctx, entry); err != nil {
		e.reply(t, describe(err))
		return
	}
	e.reply(t, "✅ Public "+in.Handle+" saved as "+in.Label)
	e.showMenu(t)
}

func (e *Engine) onAddPrivateSearch(t *turn) {
	if t.text == "" {
		e.reply(t, textBadPrivate)
		return
	}

	found, err := e.deps.Directory.SearchDialogs(t.ctx, t.text)
	if err != nil {
		e.reply(t, describe(err))
		return
	}
	query := strings.ToLower(t.text)
	cands := lo.Filter(found, func(d platform.Dialog, _ int) bool {
		return d.IsChannel && strings.Contains(strings.ToLower(d.Title), query)
	})

	switch len(cands) {
	case 0:
		e.reply(t, textNothingFound)
	case 1:
		e.addPrivate(t, cands[0])
	default:
		e.setStep(t, AddPrivateChoiceStep{Candidates: cands})
		titles := lo.Map(cands, func(d platform.Dialog, _ int) string { return d.Title })
		e.reply(t, "Choose a number (0 to cancel):\n"+numbered(titles))
	}
}

func (e *Engine) onAddPrivateChoice(t *turn, step AddPrivateChoiceStep) {
	idx, isNum, inRange := parseIndex(t.text, len(step.Candidates))
	switch {
	case !isNum:
		e.reply(t, textNeedNumber)
	case !inRange:
		e.reply(t, textBadNumber)
	default:
		e.addPrivate(t, step.Candidates[idx])
	}
}

func (e *Engine) addPrivate(t *turn, d platform.Dialog) {
	entry := registry.Entry{
		Label:      registry.NormalizeLabel(d.Title),
		ID:         d.ID,
		AccessHash: d.AccessHash,
		Kind:       registry.KindPrivate,
		Username:   d.Username,
	}
	if err := e.deps.Channels.Add(t.ctx, entry); err != nil {
		e.reply(t, describe(err))
		e.showMenu(t)
		return
	}
	e.reply(t, "✅ Private "+entry.Label+" saved")
	e.showMenu(t)
}

func (e *Engine) onDeleteSelect(t *turn, step DeleteSelectStep) {
	idx, isNum, inRange := parseIndex(t.text, len(step.Labels))
	switch {
	case !isNum:
		e.reply(t, textNeedNumber)
		return
	case !inRange:
		e.reply(t, textBadNumber)
		return
	}

	label := step.Labels[idx]
	if err := e.deps.Channels.Remove(t.ctx, label); err != nil {
		e.reply(t, describe(err))
	} else {
		e.reply(t, "🗑 Channel "+label+" deleted")
	}
	e.showMenu(t)
}

func (e *Engine) onSetDefaultSelect(t *turn, step SetDefaultSelectStep) {
	idx, isNum, inRange := parseIndex(t.text, len(step.Labels))
	switch {
	case !isNum:
		e.reply(t, textNeedNumber)
		return
	case !inRange:
		e.reply(t, textBadNumber)
		return
	}

	label := step.Labels[idx]
	if err := e.deps.Channels.SetDefault(t.ctx, label); err != nil {
		e.reply(t, describe(err))
	} else {
		e.reply(t, "🎯 Default set: "+label)
	}
	e.showMenu(t)
}

func (e *Engine) onLinkKindSelect(t *turn) {
	kind, err := invite.ParseKind(t.text)
	if err != nil {
		idx, isNum, inRange := parseIndex(t.text, len(invite.Kinds))
		if !isNum || !inRange {
			e.reply(t, textBadNumber)
			return
		}
		kind = invite.Kinds[idx]
	}
	e.generate(t, kind)
	e.showMenu(t)
}

func (e *Engine) generate(t *turn, kind invite.Kind) {
	entry, ok := e.defaultEntry(t)
	if !ok {
		return
	}
	link, err := e.deps.Links.Export(t.ctx, entry, kind)
	if err != nil {
		e.log.Info().Err(err).Str("label", entry.Label).Msg("link export failed")
		e.reply(t, describe(err))
		return
	}
	e.reply(t, "🔗 "+link)
}

func (e *Engine) publish(t *turn) {
	entry, ok := e.defaultEntry(t)
	if !ok {
		return
	}
	link, err := e.deps.Links.Publish(t.ctx, entry, e.defaultKind)
	if err != nil {
		e.log.Info().Err(err).Str("label", entry.Label).Msg("publish failed")
		e.reply(t, describe(err))
		return
	}
	e.reply(t, "📩 Published: "+link)
}

func (e *Engine) defaultEntry(t *turn) (registry.Entry, bool) {
	r, ok := e.snapshot(t)
	if !ok {
		return registry.Entry{}, false
	}
	entry, ok := r.Default()
	if !ok {
		e.reply(t, textNoDefault)
		return registry.Entry{}, false
	}
	return entry, true
}

func (e *Engine) startWatch(t *turn) {
	chatID := t.msg.ConversationID
	err := e.deps.Watch.Start(func(ev supervisor.Event) {
		if text := formatEvent(ev); text != "" {
			e.send(context.Background(), chatID, 0, text)
		}
	})
	if errors.Is(err, supervisor.ErrAlreadyRunning) {
		e.reply(t, textWatchRunning)
		return
	}
	if err != nil {
		e.reply(t, describe(err))
		return
	}
	e.reply(t, textWatchStarted)
}

func (e *Engine) stopWatch(t *turn) {
	err := e.deps.Watch.Stop(t.ctx)
	if errors.Is(err, supervisor.ErrNotRunning) {
		e.reply(t, textWatchNotRunning)
		return
	}
	if err != nil {
		e.reply(t, describe(err))
		return
	}
	e.reply(t, textWatchStopped)
}

func (e *Engine) snapshot(t *turn) (*registry.Registry, bool) {
	r, err := e.deps.Channels.Snapshot(t.ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("load registry failed")
		e.reply(t, describe(err))
		return nil, false
	}
	return r, true
}

// showMenu puts the conversation at the menu, creating it if needed. The
// watermark never moves backwards.
func (e *Engine) showMenu(t *turn) {
	wm := t.msg.ID
	if t.conv.state != nil && t.conv.state.Watermark > wm {
		wm = t.conv.state.Watermark
	}
	t.conv.state = &State{Step: MenuStep{}, Watermark: wm}
	e.reply(t, menuText)
}

func (e *Engine) setStep(t *turn, s Step) {
	t.conv.state.Step = s
}

// reply answers the current message and raises the watermark past the reply
// so its echo is ignored.
func (e *Engine) reply(t *turn, text string) {
	id := e.send(t.ctx, t.msg.ConversationID, t.msg.ID, text)
	if id > 0 && t.conv.state != nil && id > t.conv.state.Watermark {
		t.conv.state.Watermark = id
	}
}

func (e *Engine) send(ctx context.Context, chatID, replyTo int64, text string) int64 {
	e.sent.begin(chatID, text)
	id, err := e.deps.Replier.Reply(ctx, chatID, replyTo, text)
	if err != nil {
		e.sent.finish(chatID, text, 0)
		e.log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
		return 0
	}
	e.sent.finish(chatID, text, id)
	return id
}
