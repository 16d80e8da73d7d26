package restgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"golang.org/x/oauth2"
)

const maxResponseBody = 1 << 20

// headerTransport stamps the API key and a request id on every request,
// token requests included.
type headerTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	if t.apiKey != "" {
		r.Header.Set("apikey", t.apiKey)
	}
	if r.Header.Get("X-Request-Id") == "" {
		r.Header.Set("X-Request-Id", uuid.NewString())
	}
	return t.base.RoundTrip(r)
}

func (g *Gateway) do(ctx context.Context, method, path, access string, body, out any, hdr http.Header) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return gateway.WrapError(gateway.ErrUnavailable, "malformed response", err)
	}
	return nil
}

func statusKind(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return gateway.ErrUnauthorized
	case code == http.StatusNotFound:
		return gateway.ErrNotFound
	case code == http.StatusTooManyRequests:
		return gateway.ErrRateLimited
	case code >= http.StatusInternalServerError:
		return gateway.ErrUnavailable
	}
	return gateway.ErrRejected
}

type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

// remoteMessage extracts the service's human-readable message from body.
func remoteMessage(body []byte, fallback string) string {
	var e errorBody
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	return fallback
}

func statusError(code int, body []byte) error {
	return gateway.NewError(statusKind(code), remoteMessage(body, http.StatusText(code)))
}

// tokenError maps a failed grant. A refused grant means bad credentials.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return transportError(err)
	}

	code := 0
	if re.Response != nil {
		code = re.Response.StatusCode
	}
	kind := gateway.ErrRejected
	switch {
	case re.ErrorCode == "invalid_grant", code == http.StatusUnauthorized:
		kind = gateway.ErrUnauthorized
	case code != 0:
		kind = statusKind(code)
	}

	msg := re.ErrorDescription
	if msg == "" {
		msg = remoteMessage(re.Body, http.StatusText(code))
	}
	return gateway.WrapError(kind, msg, err)
}

func transportError(err error) error {
	return gateway.WrapError(gateway.ErrUnavailable, "", err)
}
