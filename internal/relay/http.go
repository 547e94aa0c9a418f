package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"parley/internal/domain"
)

// DefaultTimeout bounds one relay round trip.
const DefaultTimeout = 15 * time.Second

// HTTP is a RelayClient speaking JSON to a relay Server.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for the relay at base. A zero timeout selects
// DefaultTimeout.
func NewHTTP(base string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: timeout},
	}
}

func (c *HTTP) PublishPublicKey(ctx context.Context, user domain.UserID, pub domain.PublicKey) error {
	return c.do(ctx, http.MethodPost, "/keys", KeyRegistration{UserID: user, PublicKey: pub}, nil)
}

// FetchPublicKey returns domain.ErrUnknownPeerPublicKey when the relay has no
// key for user.
func (c *HTTP) FetchPublicKey(ctx context.Context, user domain.UserID) (domain.PublicKey, error) {
	var reg KeyRegistration
	err := c.do(ctx, http.MethodGet, "/keys/"+url.PathEscape(string(user)), nil, &reg)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return domain.PublicKey{}, oops.Wrapf(domain.ErrUnknownPeerPublicKey, "relay has no key for %q", user)
		}
		return domain.PublicKey{}, err
	}
	if reg.UserID != user {
		return domain.PublicKey{}, oops.Errorf("relay answered key request for %q with %q", user, reg.UserID)
	}
	return reg.PublicKey, nil
}

func (c *HTTP) SendEnvelope(ctx context.Context, env domain.Envelope) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(string(env.To)), env, nil)
}

func (c *HTTP) FetchEnvelopes(ctx context.Context, user domain.UserID, limit int) ([]domain.Envelope, error) {
	path := "/msg/" + url.PathEscape(string(user))
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []domain.Envelope
	if err := c.do(ctx, http.MethodGet, path, nil, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

func (c *HTTP) AckEnvelopes(ctx context.Context, user domain.UserID, count int) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(string(user))+"/ack", ackRequest{Count: count}, nil)
}

// StatusError is a non-2xx relay response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := e.Method + " " + e.URL + ": " + strconv.Itoa(e.Code) + " " + http.StatusText(e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return oops.Wrapf(err, "relay %s %s: encode", method, path)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return oops.Wrapf(err, "relay %s %s", method, path)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return oops.Wrapf(err, "relay %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: method,
			URL:    req.URL.String(),
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.Wrapf(err, "relay %s %s: decode", method, path)
	}
	return nil
}

var _ domain.RelayClient = (*HTTP)(nil)
