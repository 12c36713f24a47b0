// Package chat orchestrates one conversation turn: session state in, model
// reply out, with commerce actions dispatched in between.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	commercex "github.com/vndang/shoptalk/agent/commerce"
	contractx "github.com/vndang/shoptalk/agent/contract"
	normalizex "github.com/vndang/shoptalk/agent/normalize"
	sessionx "github.com/vndang/shoptalk/agent/session"
	ticketx "github.com/vndang/shoptalk/agent/ticket"
	metricsx "github.com/vndang/shoptalk/pkg/metrics"
)

const defaultFallbackGreeting = "Sorry, I could not produce a reply just now. Please try again."

type Config struct {
	MaxContextMessages int    `envconfig:"MAX_CONTEXT_MESSAGES" split_words:"true" default:"20"`
	FallbackGreeting   string `envconfig:"FALLBACK_GREETING" split_words:"true"`
}

// Service handles chat turns. One Service serves all conversations.
type Service struct {
	store     *sessionx.Store
	responder contractx.Responder
	commerce  *commercex.Client
	tracker   *ticketx.Tracker
	metrics   *metricsx.Metrics

	graphRunner compose.Runnable[TurnRequest, *TurnResult]

	maxContextMessages int
	fallbackGreeting   string
	now                func() time.Time
}

func NewService(
	store *sessionx.Store,
	responder contractx.Responder,
	commerce *commercex.Client,
	tracker *ticketx.Tracker,
	metrics *metricsx.Metrics,
	cfg Config,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	if commerce == nil {
		return nil, errors.New("commerce client is required")
	}
	if tracker == nil {
		tracker = ticketx.NewTracker()
	}

	maxMessages := cfg.MaxContextMessages
	if maxMessages <= 0 {
		maxMessages = 20
	}
	greeting := strings.TrimSpace(cfg.FallbackGreeting)
	if greeting == "" {
		greeting = defaultFallbackGreeting
	}

	s := &Service{
		store:              store,
		responder:          responder,
		commerce:           commerce,
		tracker:            tracker,
		metrics:            metrics,
		maxContextMessages: maxMessages,
		fallbackGreeting:   greeting,
		now:                time.Now,
	}

	graphRunner, err := s.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// HandleTurn runs a full turn through the pipeline graph.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	started := s.now()
	result, err := s.graphRunner.Invoke(ctx, req)
	s.observeTurn(started, err)
	return result, err
}

func (s *Service) observeTurn(started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	s.metrics.TurnDuration.Observe(s.now().Sub(started).Seconds())
	s.metrics.ActiveSessions.Set(float64(s.store.Count()))
}

// ResetSession drops a conversation's live and durable state, optionally
// seeding a fresh profile.
func (s *Service) ResetSession(ctx context.Context, userID, sessionID string, profile *contractx.UserProfile) error {
	if err := s.store.Reset(ctx, sessionID); err != nil {
		return err
	}
	s.commerce.DropConversation(sessionID)
	if err := s.store.Create(sessionID, userID); err != nil {
		return err
	}
	if profile != nil {
		s.store.SetProfile(userID, sessionID, *profile)
	}
	return nil
}

// SessionMemory returns a diagnostics view of the live session record.
func (s *Service) SessionMemory(sessionID string) (map[string]any, error) {
	rec, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"session_id":    rec.SessionID,
		"user_id":       rec.UserID,
		"memory":        rec.Memory,
		"history":       rec.History,
		"message_count": len(rec.History),
		"cart_id":       rec.CartID,
	}, nil
}

// Store exposes the session store for the profile endpoints.
func (s *Service) Store() *sessionx.Store {
	return s.store
}

// --- pipeline steps, shared by the graph and the streaming path ---

func (s *Service) validateRequest(req TurnRequest) (*turnState, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("message is required")
	}

	st := &turnState{
		req:       req,
		userID:    strings.TrimSpace(req.UserID),
		sessionID: strings.TrimSpace(req.SessionID),
		timestamp: s.now().UTC(),
	}
	if st.userID == "" {
		st.userID = "user-" + uuid.NewString()
	}
	if st.sessionID == "" {
		st.sessionID = "session-" + uuid.NewString()
	}
	if st.req.MaxContextMessages <= 0 {
		st.req.MaxContextMessages = s.maxContextMessages
	}
	return st, nil
}

func (s *Service) ensureSession(ctx context.Context, st *turnState) error {
	if err := s.store.Create(st.sessionID, st.userID); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if st.req.UserProfile != nil {
		s.store.SetProfile(st.userID, st.sessionID, *st.req.UserProfile)
	}

	persisted, err := s.store.LoadPersisted(ctx, st.sessionID)
	if err != nil {
		// A broken archive must not block the conversation.
		log.Warn().Err(err).Str("session_id", st.sessionID).Msg("load persisted memory")
	} else if len(persisted) > 0 {
		if err := s.store.MergePersisted(st.sessionID, persisted); err != nil {
			return err
		}
	}

	rec, err := s.store.Get(st.sessionID)
	if err != nil {
		return err
	}
	if rec.CartID != "" {
		s.commerce.Conversation(st.sessionID).AdoptCart(rec.CartID)
	}
	return nil
}

func (s *Service) recordUserMessage(st *turnState) error {
	msg := contractx.Message{Role: "user", Content: st.req.Message, Timestamp: st.timestamp}
	if err := s.store.AppendMessage(st.sessionID, msg); err != nil {
		return err
	}
	return s.store.TrimHistory(st.sessionID, st.req.MaxContextMessages)
}

func (s *Service) buildContext(st *turnState) error {
	rec, err := s.store.Get(st.sessionID)
	if err != nil {
		return err
	}
	profile := s.store.Profile(st.userID, st.sessionID)
	st.messages = buildModelContext(rec, profile, st.timestamp)
	return nil
}

func (s *Service) invokeModel(ctx context.Context, st *turnState) error {
	reply, err := s.responder.Respond(ctx, st.messages)
	if err != nil {
		return err
	}
	st.reply = reply
	st.raw = reply.Content
	return nil
}

func (s *Service) normalizeResponse(st *turnState) error {
	if st.req.IncludeThinking {
		st.thinking, st.response = normalizex.ExtractThinking(st.response)
	}
	st.response = normalizex.Normalize(st.response)
	if strings.TrimSpace(st.response) == "" {
		return contractx.ErrModelResponse
	}
	return nil
}

func (s *Service) recordReplyAndPersist(ctx context.Context, st *turnState) error {
	msg := contractx.Message{Role: "assistant", Content: st.response, Timestamp: s.now().UTC()}
	if err := s.store.AppendMessage(st.sessionID, msg); err != nil {
		return err
	}
	if err := s.store.TrimHistory(st.sessionID, st.req.MaxContextMessages); err != nil {
		return err
	}
	if err := s.store.Persist(ctx, st.sessionID); err != nil {
		// Persistence failure degrades durability, not the reply.
		log.Warn().Err(err).Str("session_id", st.sessionID).Msg("persist session")
	}
	return nil
}

func (s *Service) finalize(st *turnState) (*TurnResult, error) {
	result := &TurnResult{
		Response:   st.response,
		UserID:     st.userID,
		SessionID:  st.sessionID,
		TokensUsed: st.reply.TokensUsed,
		ModelName:  st.reply.ModelName,
	}
	if st.req.IncludeRaw {
		result.RawResponse = st.raw
	}
	if st.req.IncludeThinking {
		result.Thinking = st.thinking
	}
	if st.req.IncludeTimestamp {
		result.Timestamp = st.timestamp
	}
	if st.req.IncludeSessionData {
		if data, err := s.SessionMemory(st.sessionID); err == nil {
			result.SessionData = data
		}
	}
	return result, nil
}

// StreamTurn handles a turn incrementally: model deltas are emitted as they
// arrive, then the normalized result (when it differs from the raw stream)
// and a final done frame with metadata. A model failure degrades to the
// fallback greeting rather than an error stream.
func (s *Service) StreamTurn(ctx context.Context, req TurnRequest, emit func(Frame) error) error {
	started := s.now()

	st, err := s.validateRequest(req)
	if err != nil {
		return err
	}
	if err := s.ensureSession(ctx, st); err != nil {
		return err
	}
	if err := s.recordUserMessage(st); err != nil {
		return err
	}
	if err := s.buildContext(st); err != nil {
		return err
	}

	reply, err := s.responder.RespondStream(ctx, st.messages, func(chunk string) {
		if eerr := emit(Frame{Content: chunk}); eerr != nil {
			log.Warn().Err(eerr).Msg("emit stream frame")
		}
	})
	if err != nil {
		s.observeTurn(started, err)
		if eerr := emit(Frame{Content: s.fallbackGreeting}); eerr != nil {
			return eerr
		}
		return emit(Frame{Done: true, Metadata: s.frameMetadata(st)})
	}
	st.reply = reply
	st.raw = reply.Content

	if err := s.dispatchActions(ctx, st); err != nil {
		s.observeTurn(started, err)
		return err
	}
	if err := s.normalizeResponse(st); err != nil {
		s.observeTurn(started, err)
		return err
	}

	if st.response != st.raw {
		if err := emit(Frame{Content: st.response}); err != nil {
			return err
		}
	}

	if err := s.recordReplyAndPersist(ctx, st); err != nil {
		s.observeTurn(started, err)
		return err
	}

	s.observeTurn(started, nil)
	return emit(Frame{Done: true, Metadata: s.frameMetadata(st)})
}

func (s *Service) frameMetadata(st *turnState) *FrameMetadata {
	return &FrameMetadata{
		TokensUsed: st.reply.TokensUsed,
		ModelName:  st.reply.ModelName,
		UserID:     st.userID,
		SessionID:  st.sessionID,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	}
}
