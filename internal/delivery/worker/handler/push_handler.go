package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cookbook/config"
	deliverycontext "cookbook/internal/delivery/context"
	"cookbook/internal/domain/entity"
	"cookbook/internal/errors"
	"cookbook/internal/infra/metrics"
	"cookbook/internal/infra/pubsub"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// Values of the result label on the received-events counter.
const (
	resultAccepted  = "accepted"
	resultRejected  = "rejected"
	resultMalformed = "malformed"
)

// tokenValidator checks a push subscription's OIDC token for audience.
type tokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushHandler receives session events delivered by a Pub/Sub push
// subscription or by the local HTTP publisher.
type PushHandler struct {
	verifyPushAuth bool
	validate       tokenValidator
	logger         *slog.Logger
	metrics        *metrics.EventMetrics
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.EventMetrics
}

// NewPushHandler creates a new Pub/Sub push handler
func NewPushHandler(params PushHandlerParams) *PushHandler {
	return &PushHandler{
		verifyPushAuth: params.Config.Worker != nil && params.Config.Worker.VerifyPushAuth,
		validate:       idtoken.Validate,
		logger:         params.Logger,
		metrics:        params.Metrics,
	}
}

// HandlePush acknowledges every well-formed message. Malformed bodies get a
// 400 and are not retried by Pub/Sub; events of unknown shape are acked and
// counted as rejected.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := h.verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg pubsub.PushMessage
	if err := c.Bind(&pushMsg); err != nil {
		return h.malformed(c, "Failed to parse push message", err)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		return h.malformed(c, "Failed to decode message data", err)
	}

	var event entity.SessionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return h.malformed(c, "Failed to parse session event", err)
	}

	requestID := extractRequestID(ctx, &pushMsg, &event)
	reqLogger := h.logger.With(slog.String("request_id", requestID))

	if !event.Type.Valid() || event.UserID == uuid.Nil {
		h.metrics.Received.WithLabelValues("unknown", resultRejected).Inc()
		reqLogger.Warn("[Worker] Dropping unrecognised session event",
			slog.String("type", string(event.Type)),
			slog.String("message_id", pushMsg.Message.MessageID),
		)

		return c.NoContent(http.StatusOK)
	}

	h.metrics.Received.WithLabelValues(string(event.Type), resultAccepted).Inc()
	reqLogger.Info("[Worker] Session event received",
		slog.String("type", string(event.Type)),
		slog.String("user_id", event.UserID.String()),
		slog.Time("occurred_at", event.OccurredAt),
		slog.String("message_id", pushMsg.Message.MessageID),
		slog.String("subscription", pushMsg.Subscription),
	)

	return c.NoContent(http.StatusOK)
}

func (h *PushHandler) malformed(c echo.Context, msg string, err error) error {
	h.metrics.Received.WithLabelValues("unknown", resultMalformed).Inc()
	h.logger.Error("[Worker] "+msg, slog.Any("error", err))

	return c.NoContent(http.StatusBadRequest)
}

// extractRequestID prefers message attributes, then the event payload, then
// the X-Request-Id header, and finally generates one.
func extractRequestID(ctx context.Context, pushMsg *pubsub.PushMessage, event *entity.SessionEvent) string {
	if requestID, ok := pushMsg.Message.Attributes["request_id"]; ok && requestID != "" {
		return requestID
	}

	if event.RequestID != "" {
		return event.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the OIDC token Pub/Sub attaches to push requests.
func (h *PushHandler) verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	// The audience is the URL of this endpoint.
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	payload, err := h.validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
