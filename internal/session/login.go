package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginClient exchanges a user name and password for a session token at the
// proxy's login endpoint.
type LoginClient struct {
	url        string
	httpClient *http.Client
}

// NewLoginClient creates a client for the login endpoint at url.
func NewLoginClient(url string, timeout time.Duration) *LoginClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LoginClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Exchange posts the credentials and returns the session token with the
// expiry taken from its exp claim. The signature is not checked here; the
// proxy validates the token on every request.
func (c *LoginClient) Exchange(ctx context.Context, user, pass string) (string, time.Time, error) {
	payload, err := json.Marshal(loginRequest{User: user, Pass: pass})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read response: %w", err)
	}

	var out loginResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", time.Time{}, fmt.Errorf("%s (status %d): %w", msg, resp.StatusCode, ErrLoginFailed)
	}
	if decodeErr != nil {
		return "", time.Time{}, fmt.Errorf("decoding login response: %w: %w", ErrLoginFailed, decodeErr)
	}
	if out.Token == "" {
		return "", time.Time{}, fmt.Errorf("response carried no token: %w", ErrLoginFailed)
	}

	expiresAt, err := TokenExpiry(out.Token)
	if err != nil {
		return "", time.Time{}, err
	}
	return out.Token, expiresAt, nil
}

// TokenExpiry returns the exp claim of a JWT without verifying its
// signature. A token without exp yields the zero time.
func TokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing session token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
