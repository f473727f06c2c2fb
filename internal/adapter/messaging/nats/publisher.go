// Package nats publishes domain events for downstream consumers such as
// notification fan-out and activity feeds.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
)

const (
	SubjectReviewCreated = "review.created"
	SubjectReviewUpdated = "review.updated"
	SubjectReviewDeleted = "review.deleted"
	SubjectReviewLiked   = "review.liked"
	SubjectReviewUnliked = "review.unliked"
)

// reviewEvent is the wire payload for review lifecycle subjects.
type reviewEvent struct {
	ReviewID  string    `json:"reviewId"`
	Author    string    `json:"author"`
	ReleaseID string    `json:"releaseId"`
	ArtistID  string    `json:"artistId"`
	Rating    float64   `json:"rating"`
	IsDraft   bool      `json:"isDraft"`
	Timestamp time.Time `json:"timestamp"`
}

// likeEvent is the wire payload for like toggle subjects.
type likeEvent struct {
	ReviewID  string    `json:"reviewId"`
	Actor     string    `json:"actor"`
	LikeCount int64     `json:"likeCount"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher implements domain.EventPublisher on a NATS connection.
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
	tracer trace.Tracer
}

// Connect dials NATS with reconnect handling and wraps the connection in a
// Publisher.
func Connect(url string, log *logger.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return &Publisher{
		conn:   conn,
		logger: log.Named("NATSPublisher"),
		tracer: otel.Tracer("nats-publisher"),
	}, nil
}

// Close drains the connection so buffered publishes flush before shutdown.
func (p *Publisher) Close() {
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Drain(); err != nil {
			p.logger.Warn("Failed to drain NATS connection", zap.Error(err))
		}
	}
}

func (p *Publisher) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, SubjectReviewCreated, review)
}

func (p *Publisher) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, SubjectReviewUpdated, review)
}

func (p *Publisher) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publishReview(ctx, SubjectReviewDeleted, review)
}

func (p *Publisher) PublishLikeToggled(ctx context.Context, reviewID, actor primitive.ObjectID, liked bool, likeCount int64) error {
	subject := SubjectReviewUnliked
	if liked {
		subject = SubjectReviewLiked
	}
	return p.publish(ctx, subject, likeEvent{
		ReviewID:  reviewID.Hex(),
		Actor:     actor.Hex(),
		LikeCount: likeCount,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publishReview(ctx context.Context, subject string, review *domain.Review) error {
	return p.publish(ctx, subject, reviewEvent{
		ReviewID:  review.ID.Hex(),
		Author:    review.Author.Hex(),
		ReleaseID: review.ReleaseID,
		ArtistID:  review.ArtistID,
		Rating:    review.Rating,
		IsDraft:   review.IsDraft,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event any) error {
	ctx, span := p.tracer.Start(ctx, "nats.publish "+subject,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination", subject),
		))
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal failed")
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	otel.GetTextMapPropagator().Inject(ctx, natsHeaderCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		p.logger.Error("Failed to publish event", zap.Error(err), zap.String("subject", subject))
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("Published event", zap.String("subject", subject))
	return nil
}

// natsHeaderCarrier adapts nats.Header to the OpenTelemetry propagation
// carrier interface so trace context rides along with each message.
type natsHeaderCarrier nats.Header

var _ propagation.TextMapCarrier = natsHeaderCarrier{}

func (c natsHeaderCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c natsHeaderCarrier) Set(key, value string) {
	nats.Header(c).Set(key, value)
}

func (c natsHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
