package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/brokerreviews/internal/domain/enums"
	"github.com/ivankudzin/brokerreviews/internal/domain/model"
	"github.com/ivankudzin/brokerreviews/internal/infra/telegram"
	"github.com/ivankudzin/brokerreviews/internal/metrics"
)

type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyDecided Outcome = "already_decided"
	OutcomeInspected      Outcome = "inspected"
	OutcomeUnknownReview  Outcome = "unknown_review"
)

const unknownIssuer = "unknown"

// Inbound is a channel message reduced to what routing needs.
type Inbound struct {
	Text       string
	Issuer     string
	ReceivedAt time.Time
}

type Result struct {
	Outcome Outcome
	Command model.ModerationCommand
	Review  model.Review
	// NotifyErr is set when the reply to the channel failed. The decision itself stands.
	NotifyErr error
}

type Router struct {
	store     StateStore
	channel   Channel
	publisher DecisionPublisher
	allowed   map[string]struct{}
	botName   func() string
	logger    *zap.Logger
}

type RouterOption func(*Router)

func WithDecisionPublisher(publisher DecisionPublisher) RouterOption {
	return func(r *Router) {
		r.publisher = publisher
	}
}

// WithAllowedIssuers restricts commands to the given usernames or ids. An empty list allows all.
func WithAllowedIssuers(issuers []string) RouterOption {
	return func(r *Router) {
		for _, issuer := range issuers {
			key := normalizeIssuer(issuer)
			if key == "" {
				continue
			}
			if r.allowed == nil {
				r.allowed = make(map[string]struct{}, len(issuers))
			}
			r.allowed[key] = struct{}{}
		}
	}
}

// WithBotUsername makes the router ignore commands whose "@bot" suffix names another bot.
// username is asked lazily; while it returns "" every suffixed command is ignored.
func WithBotUsername(username func() string) RouterOption {
	return func(r *Router) {
		r.botName = username
	}
}

func NewRouter(store StateStore, channel Channel, logger *zap.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		store:   store,
		channel: channel,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Route(ctx context.Context, in Inbound) (Result, error) {
	cmd, ok := parseInbound(in)
	if !ok {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	if cmd.Issuer == "" {
		cmd.Issuer = unknownIssuer
	}

	if !r.addressedToUs(cmd.Mention) {
		r.logger.Debug("moderation command addressed to another bot ignored",
			zap.String("mention", cmd.Mention),
			zap.Int64("review_id", cmd.ReviewID),
		)
		r.record(cmd, OutcomeIgnored)
		return Result{Outcome: OutcomeIgnored, Command: cmd}, nil
	}
	if !r.issuerAllowed(cmd.Issuer) {
		r.logger.Info("moderation command from issuer outside allow-list ignored",
			zap.String("issuer", cmd.Issuer),
			zap.Int64("review_id", cmd.ReviewID),
		)
		r.record(cmd, OutcomeIgnored)
		return Result{Outcome: OutcomeIgnored, Command: cmd}, nil
	}
	if r.store == nil {
		return Result{Command: cmd}, ErrStoreNotConfigured
	}

	var (
		result Result
		err    error
	)
	if cmd.Kind == enums.CommandKindInspect {
		result, err = r.inspect(ctx, cmd)
	} else {
		result, err = r.decide(ctx, cmd)
	}
	if result.Outcome != "" {
		r.record(cmd, result.Outcome)
	}
	return result, err
}

func (r *Router) decide(ctx context.Context, cmd model.ModerationCommand) (Result, error) {
	target, ok := cmd.Kind.TargetState()
	if !ok {
		return Result{Command: cmd}, fmt.Errorf("%w: command %s", model.ErrInvalidTransition, cmd.Kind)
	}

	outcome, err := r.store.Transition(ctx, cmd.ReviewID, target, cmd.Issuer)
	if errors.Is(err, model.ErrReviewNotFound) {
		return r.unknown(ctx, cmd)
	}
	if err != nil {
		return Result{Command: cmd}, fmt.Errorf("transition review %d: %w", cmd.ReviewID, err)
	}

	result := Result{Command: cmd, Review: outcome.Review}
	if !outcome.Applied {
		result.Outcome = OutcomeAlreadyDecided
		result.NotifyErr = r.notify(ctx, "already_decided", FormatAlreadyDecided(outcome.Review))
		return result, nil
	}

	r.logger.Info("review decision applied",
		zap.Int64("review_id", cmd.ReviewID),
		zap.String("state", string(outcome.State)),
		zap.String("issuer", cmd.Issuer),
	)

	result.Outcome = OutcomeApplied
	result.NotifyErr = r.notify(ctx, "decision", FormatDecision(outcome.Review))
	r.publish(ctx, outcome.Review)
	return result, nil
}

func (r *Router) inspect(ctx context.Context, cmd model.ModerationCommand) (Result, error) {
	review, err := r.store.Lookup(ctx, cmd.ReviewID)
	if errors.Is(err, model.ErrReviewNotFound) {
		return r.unknown(ctx, cmd)
	}
	if err != nil {
		return Result{Command: cmd}, fmt.Errorf("lookup review %d: %w", cmd.ReviewID, err)
	}

	return Result{
		Outcome:   OutcomeInspected,
		Command:   cmd,
		Review:    review,
		NotifyErr: r.notify(ctx, "detail", FormatDetail(review)),
	}, nil
}

func (r *Router) unknown(ctx context.Context, cmd model.ModerationCommand) (Result, error) {
	return Result{
		Outcome:   OutcomeUnknownReview,
		Command:   cmd,
		NotifyErr: r.notify(ctx, "unknown_review", FormatUnknownReview(cmd.ReviewID)),
	}, &UnknownReviewError{ReviewID: cmd.ReviewID}
}

func (r *Router) notify(ctx context.Context, kind, text string) error {
	if r.channel == nil {
		return telegram.ErrNotInitialized
	}

	_, err := r.channel.Send(ctx, text)
	metrics.ChannelSends.WithLabelValues(kind, metrics.SendResult(err)).Inc()
	if err != nil {
		r.logger.Warn("send moderation reply failed", zap.String("kind", kind), zap.Error(err))
		return err
	}
	return nil
}

func (r *Router) publish(ctx context.Context, review model.Review) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishDecision(ctx, review); err != nil {
		r.logger.Warn("publish review decision failed", zap.Int64("review_id", review.ID), zap.Error(err))
	}
}

func (r *Router) addressedToUs(mention string) bool {
	if mention == "" || r.botName == nil {
		return true
	}
	self := r.botName()
	return self != "" && strings.EqualFold(mention, self)
}

func (r *Router) issuerAllowed(issuer string) bool {
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[normalizeIssuer(issuer)]
	return ok
}

func (r *Router) record(cmd model.ModerationCommand, outcome Outcome) {
	metrics.CommandOutcomes.WithLabelValues(strings.ToLower(string(cmd.Kind)), string(outcome)).Inc()
}

func normalizeIssuer(issuer string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(issuer), "@"))
}
