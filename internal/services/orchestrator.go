package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

const (
	greetingFaqOptions = 2
	maxFreeNowRooms    = 5
	freeNowWindow      = 2 * time.Hour
	defaultLockTimeout = 30 * time.Second
	defaultIdleTimeout = 12 * time.Hour
	customerLockPrefix = "customer:"
)

// OrchestratorOptions holds the collaborators of an Orchestrator. Rephraser,
// Locker, Clock and Senders have usable defaults when left empty.
type OrchestratorOptions struct {
	Store        storage.Store
	Flow         *ReservationFlow
	Console      *OperatorConsole
	Resolver     *IntentResolver
	Availability *AvailabilityEngine
	Rephraser    Rephraser
	Locker       Locker
	Clock        Clock
	Senders      map[models.Channel]Sender
	IdleTimeout  time.Duration
	LockTimeout  time.Duration
}

// Orchestrator runs one dialogue turn per inbound message. Turns for the same
// customer are serialized through the Locker.
type Orchestrator struct {
	store        storage.Store
	flow         *ReservationFlow
	console      *OperatorConsole
	resolver     *IntentResolver
	availability *AvailabilityEngine
	rephraser    Rephraser
	locker       Locker
	clock        Clock
	senders      map[models.Channel]Sender
	idleTimeout  time.Duration
	lockTimeout  time.Duration
}

// turn is the state of one inbound message while it is being answered.
type turn struct {
	in           models.InboundMessage
	customer     *models.Customer
	conversation *models.Conversation
}

// NewOrchestrator wires the dialogue engine.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		store:        opts.Store,
		flow:         opts.Flow,
		console:      opts.Console,
		resolver:     opts.Resolver,
		availability: opts.Availability,
		rephraser:    opts.Rephraser,
		locker:       opts.Locker,
		clock:        opts.Clock,
		senders:      opts.Senders,
		idleTimeout:  opts.IdleTimeout,
		lockTimeout:  opts.LockTimeout,
	}
	if o.rephraser == nil {
		o.rephraser = StaticRephraser{}
	}
	if o.locker == nil {
		o.locker = NewKeyedMutex()
	}
	if o.clock == nil {
		o.clock = SystemClock{Location: time.Local}
	}
	if o.senders == nil {
		o.senders = map[models.Channel]Sender{}
	}
	if o.idleTimeout <= 0 {
		o.idleTimeout = defaultIdleTimeout
	}
	if o.lockTimeout <= 0 {
		o.lockTimeout = defaultLockTimeout
	}
	if o.availability == nil {
		o.availability = NewAvailabilityEngine(o.store)
	}
	if o.resolver == nil {
		o.resolver = NewIntentResolver(o.store)
	}
	if o.flow == nil {
		o.flow = NewReservationFlow(o.store, o.availability, o.clock, nil)
	}
	return o
}

// Process answers one inbound message. The customer message is persisted
// before the reply is built; the agent message only after a successful send.
// A TransportFailure is returned together with the payload that could not be
// delivered.
func (o *Orchestrator) Process(ctx context.Context, in models.InboundMessage) (models.Payload, error) {
	in.CustomerIdentity = strings.TrimSpace(in.CustomerIdentity)
	if in.CustomerIdentity == "" {
		return models.Payload{}, fmt.Errorf("inbound message without customer identity")
	}
	if in.Channel == "" {
		in.Channel = models.ChannelWhatsApp
	}

	lockCtx, cancel := context.WithTimeout(ctx, o.lockTimeout)
	unlock, err := o.locker.Lock(lockCtx, customerLockPrefix+in.CustomerIdentity)
	cancel()
	if err != nil {
		return models.Payload{}, fmt.Errorf("lock customer %s: %w", in.CustomerIdentity, err)
	}
	defer unlock()

	now := o.clock.Now()
	customer, err := o.store.TouchCustomer(ctx, in.CustomerIdentity, in.Channel, in.Name, now)
	if err != nil {
		return models.Payload{}, fmt.Errorf("touch customer: %w", err)
	}
	conv, err := o.store.OpenConversation(ctx, customer.ID, now, o.idleTimeout)
	if err != nil {
		return models.Payload{}, fmt.Errorf("open conversation: %w", err)
	}
	if err := o.store.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleCustomer,
		Body:           in.Text,
		CreatedAt:      now,
	}); err != nil {
		return models.Payload{}, fmt.Errorf("persist customer message: %w", err)
	}

	t := &turn{in: in, customer: customer, conversation: conv}
	payload, err := o.respond(ctx, t)
	if err != nil {
		log.Error().
			Err(err).
			Str("customer", in.CustomerIdentity).
			Str("channel", string(in.Channel)).
			Str("text", in.Text).
			Msg("❌ Failed to handle message")
		payload = models.Text(msgApology)
	}

	if err := o.deliver(ctx, t, payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// ResetCustomer force-cancels the customer's booking dialogue and closes
// their conversations. It is idempotent.
func (o *Orchestrator) ResetCustomer(ctx context.Context, identity string) error {
	lockCtx, cancel := context.WithTimeout(ctx, o.lockTimeout)
	unlock, err := o.locker.Lock(lockCtx, customerLockPrefix+identity)
	cancel()
	if err != nil {
		return fmt.Errorf("lock customer %s: %w", identity, err)
	}
	defer unlock()

	customer, err := o.store.GetCustomerByIdentity(ctx, identity)
	if err != nil {
		return err
	}
	cancelled, err := o.flow.Cancel(ctx, customer.ID)
	if err != nil {
		return fmt.Errorf("cancel process: %w", err)
	}
	if err := o.store.CloseConversations(ctx, customer.ID, o.clock.Now()); err != nil {
		return fmt.Errorf("close conversations: %w", err)
	}
	log.Info().Str("customer", identity).Bool("process_cancelled", cancelled).Msg("🔄 Customer reset")
	return nil
}

func (o *Orchestrator) deliver(ctx context.Context, t *turn, payload models.Payload) error {
	sender, ok := o.senders[t.in.Channel]
	if !ok {
		sender = LogSender{}
	}
	if err := sender.Send(ctx, t.in.CustomerIdentity, payload); err != nil {
		var tf *TransportFailure
		if !errors.As(err, &tf) {
			err = &TransportFailure{Channel: string(t.in.Channel), Err: err}
		}
		log.Warn().Err(err).Str("customer", t.in.CustomerIdentity).Msg("⚠️ Reply not delivered")
		return err
	}

	if err := o.store.AppendMessage(ctx, &models.Message{
		ConversationID: t.conversation.ID,
		Role:           models.RoleAgent,
		Body:           RenderPlain(payload),
		CreatedAt:      o.clock.Now(),
	}); err != nil {
		log.Error().Err(err).Str("customer", t.in.CustomerIdentity).Msg("❌ Failed to persist agent message")
	}
	return nil
}

func (o *Orchestrator) respond(ctx context.Context, t *turn) (models.Payload, error) {
	text := strings.TrimSpace(t.in.Text)
	staffCapable := t.in.Channel != models.ChannelWeb && o.console != nil

	if staffCapable && o.console.IsActivation(text) {
		payload, ok, err := o.console.Activate(ctx, t.in.CustomerIdentity)
		if err != nil {
			return models.Payload{}, err
		}
		if ok {
			return payload, nil
		}
	}

	if staffCapable {
		active, err := o.console.InSession(ctx, t.in.CustomerIdentity)
		if err != nil {
			return models.Payload{}, err
		}
		if active {
			return o.console.Handle(ctx, t.in.CustomerIdentity, text)
		}
	}

	process, err := o.store.ActiveProcess(ctx, t.customer.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.Payload{}, fmt.Errorf("active process: %w", err)
	}
	if process != nil {
		return o.flow.Advance(ctx, t.customer, process, text)
	}

	count, err := o.store.CountMessages(ctx, t.conversation.ID, models.RoleCustomer)
	if err != nil {
		return models.Payload{}, fmt.Errorf("count messages: %w", err)
	}
	if IsGreeting(text, count) {
		return o.greet(ctx, t)
	}

	reply := ParseQuickReply(text)
	switch reply.Kind {
	case QuickReplyFAQ:
		return o.faqAnswer(ctx, t, reply.ID)
	case QuickReplyBookStart:
		return o.flow.Start(ctx, t.customer)
	case QuickReplyInfo:
		return models.Choice(msgInfo, optBook()), nil
	case QuickReplyDecline:
		return models.Text(msgDecline), nil
	case QuickReplyDuration, QuickReplyRoom, QuickReplyConfirmYes, QuickReplyConfirmNo:
		return models.Choice(msgStaleOption, optBook()), nil
	case QuickReplyCancel:
		return models.Text(msgNoActiveBooking), nil
	}

	if IsBookingRequest(text) {
		return o.flow.Start(ctx, t.customer)
	}
	if IsAvailabilityQuery(text) {
		return o.freeNow(ctx)
	}

	answer, err := o.resolver.Resolve(ctx, text)
	if err != nil {
		return models.Payload{}, err
	}
	if answer != nil {
		body := o.rephrase(ctx, t, answer.Text)
		return models.Choice(body, optBook(), optInfo()), nil
	}

	return o.unknown(ctx, t, text), nil
}

func (o *Orchestrator) greet(ctx context.Context, t *turn) (models.Payload, error) {
	greeting, err := o.store.GreetingFaq(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Choice(msgWelcome, optInfo(), optBook()), nil
	}
	if err != nil {
		return models.Payload{}, fmt.Errorf("greeting faq: %w", err)
	}

	faqs, err := o.store.ListFaqs(ctx)
	if err != nil {
		return models.Payload{}, fmt.Errorf("list faqs: %w", err)
	}
	var options []models.Option
	for _, f := range faqs {
		if len(options) == greetingFaqOptions {
			break
		}
		if f.Active && !f.IsDefaultGreeting {
			options = append(options, models.Option{ID: faqToken(f.ID), Label: f.Label})
		}
	}
	options = append(options, optBook())

	body := o.rephrase(ctx, t, greeting.Answer)
	return models.Choice(joinParagraphs(body, msgHowCanIHelp), options...), nil
}

func (o *Orchestrator) faqAnswer(ctx context.Context, t *turn, id uint) (models.Payload, error) {
	faq, err := o.store.GetFaq(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !faq.Active) {
		return models.Choice(msgStaleOption, optBook()), nil
	}
	if err != nil {
		return models.Payload{}, fmt.Errorf("get faq %d: %w", id, err)
	}
	body := o.rephrase(ctx, t, faq.Answer)
	return models.Choice(body, optBook(), optInfo()), nil
}

// freeNow lists rooms free from now for a short stay, capped at closing time.
func (o *Orchestrator) freeNow(ctx context.Context) (models.Payload, error) {
	now := o.clock.Now()
	day := civilDay(now)
	closing := At(day, ClosingMinute, now.Location())
	end := now.Add(freeNowWindow)
	if end.After(closing) {
		end = closing
	}
	if !now.Before(end) {
		return models.Choice(msgNothingFreeNow, optBook()), nil
	}

	rooms, err := o.availability.ListAvailable(ctx, day, now, end)
	if err != nil {
		return models.Payload{}, err
	}
	if len(rooms) == 0 {
		return models.Choice(msgNothingFreeNow, optBook()), nil
	}
	if len(rooms) > maxFreeNowRooms {
		rooms = rooms[:maxFreeNowRooms]
	}
	lines := []string{msgFreeNow}
	for i := range rooms {
		lines = append(lines, fmt.Sprintf("• %s: %s/hour", rooms[i].DisplayName(), FormatPrice(rooms[i].Price())))
	}
	return models.Choice(strings.Join(lines, "\n"), optBook(), optInfo()), nil
}

func (o *Orchestrator) unknown(ctx context.Context, t *turn, text string) models.Payload {
	created, err := o.store.RecordUnknownQuestion(ctx, t.customer.ID, text, o.clock.Now())
	if err != nil {
		log.Warn().Err(err).Str("customer", t.in.CustomerIdentity).Msg("⚠️ Failed to record unknown question")
	} else if created {
		log.Info().Str("customer", t.in.CustomerIdentity).Str("text", text).Msg("❓ New unknown question")
	}

	body := o.rephrase(ctx, t, msgUnknown)
	return models.Choice(joinParagraphs(body, msgUnknownFollowUp), optBook(), optInfo())
}

// rephrase never fails; the technical text is returned on any problem.
func (o *Orchestrator) rephrase(ctx context.Context, t *turn, technical string) string {
	history, err := o.store.RecentMessages(ctx, t.conversation.ID, HistoryWindow+1)
	if err != nil {
		log.Debug().Err(err).Msg("⚠️ Could not load history for rephrase")
		history = nil
	}
	// The last message is the one being answered.
	if n := len(history); n > 0 && history[n-1].Role == models.RoleCustomer {
		history = history[:n-1]
	}

	text, err := o.rephraser.Rephrase(ctx, technical, t.in.Text, history)
	if err != nil || strings.TrimSpace(text) == "" {
		return technical
	}
	return text
}
