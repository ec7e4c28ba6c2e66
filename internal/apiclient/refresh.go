package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/session"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
	"github.com/yndnr/unitrack-go/internal/telemetry/metric"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshPayload struct {
	AccessToken string `json:"accessToken"`
}

// refresh makes sure the provider holds an access token newer than stale.
// A nil return means the caller may replay.
func (c *Client) refresh(ctx context.Context, stale string) error {
	if !c.coalesce {
		return c.refreshSession(ctx)
	}

	tokens := c.provider.Tokens()
	if tokens.Access != "" && tokens.Access != stale {
		c.metrics.ObserveRefresh(metric.RefreshCoalesced)
		return nil
	}

	// The flight outlives any single waiter; its own deadline is RefreshTimeout.
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(tokens.Refresh, func() (any, error) {
		return nil, c.refreshSession(detached)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshSession exchanges the refresh token and stores the new access
// token. Any failure other than cancellation of caller ends the session.
func (c *Client) refreshSession(caller context.Context) error {
	ctx, cancel := context.WithTimeout(caller, c.cfg.RefreshTimeout)
	defer cancel()
	ctx, span := c.spans.Start(ctx, "apiclient.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("unitrack.refresh.path", c.cfg.RefreshPath))

	err := c.exchangeAndStore(ctx)
	if err == nil {
		c.metrics.ObserveRefresh(metric.RefreshSuccess)
		logger.L(ctx).Info("access token refreshed")
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "refresh failed")
	if caller.Err() != nil {
		return caller.Err()
	}

	c.metrics.ObserveRefresh(metric.RefreshFailure)
	if clearErr := c.provider.Clear(context.WithoutCancel(caller)); clearErr != nil {
		logger.L(ctx).Warn("failed to erase persisted session", "error", clearErr)
	}
	c.metrics.ObserveSessionClear()
	logger.L(ctx).Warn("refresh failed, session cleared", "error", err)
	return err
}

func (c *Client) exchangeAndStore(ctx context.Context) error {
	access, err := c.exchange(ctx)
	if err != nil {
		return err
	}
	err = c.provider.SetTokens(ctx, session.Tokens{Access: access})
	if errors.Is(err, domain.ErrStoreUnavailable) {
		logger.L(ctx).Warn("refreshed token not persisted", "error", err)
		return nil
	}
	return err
}

// exchange posts the refresh token to the refresh endpoint without
// credentials and returns the new access token. A refresh token in the
// response is ignored.
func (c *Client) exchange(ctx context.Context) (string, error) {
	refresh := c.provider.Tokens().Refresh
	if refresh == "" {
		return "", domain.ErrNoRefreshToken
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: refresh})
	if err != nil {
		return "", domain.ErrInternal.WithCause(err)
	}
	req := &Request{
		Method:      http.MethodPost,
		Path:        c.cfg.RefreshPath,
		Body:        body,
		ContentType: "application/json",
		id:          ulid.Make().String(),
	}
	u, err := req.resolve(c.base)
	if err != nil {
		return "", err
	}

	resp, err := c.send(logger.WithRequestID(ctx, req.id), req, u, false)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", domain.ErrSessionExpired.WithCause(newAPIError(req, resp))
	}
	return accessTokenFrom(resp.Body)
}

// accessTokenFrom reads accessToken at the top level or inside the data
// envelope.
func accessTokenFrom(body []byte) (string, error) {
	var top refreshPayload
	if err := json.Unmarshal(body, &top); err != nil {
		return "", domain.ErrRefreshResponse.WithCause(err)
	}
	if top.AccessToken != "" {
		return top.AccessToken, nil
	}
	if env, ok := parseEnvelope(body); ok {
		var inner refreshPayload
		if err := json.Unmarshal(env.Data, &inner); err == nil && inner.AccessToken != "" {
			return inner.AccessToken, nil
		}
	}
	return "", domain.ErrRefreshResponse.WithDetails("no accessToken in response")
}
