package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// *******************************
// Getting ThingsBoard JWT tokens
// *******************************

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// SendLoginRequest - Sends a JSON POST to authenticate
func SendLoginRequest(ctx context.Context, urlConnection string, userName string, password string,
	connectionTimeout time.Duration) (*LoginResponse, error) {

	body, err := json.Marshal(LoginRequest{Username: userName, Password: password})
	if err != nil {
		return nil, err
	}

	hc := &http.Client{Timeout: connectionTimeout}
	resp, err := DoWithRetry(ctx, hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlConnection, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "error submitting request authentication")
	}
	defer resp.Body.Close()

	if err := CheckResponseStatus_(resp); err != nil {
		return nil, err
	}

	var decodedResponse LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decodedResponse); err != nil {
		return nil, errors.Wrap(err, "error decoding LoginResponse")
	}
	if decodedResponse.Token == "" {
		return nil, errors.New("no token in LoginResponse")
	}

	return &decodedResponse, nil
}

// BearerToken formats a JWT the way ThingsBoard expects it in X-Authorization.
func BearerToken(token string) string {
	return "Bearer " + token
}
