package utils

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Retry policy applied to upstream calls: transport errors and gateway
// failures are retried with an exponential backoff.
var (
	RetryInitialInterval        = 1 * time.Second
	RetryMaxRetries      uint64 = 4
	retryStatusCodes            = map[int]bool{
		http.StatusBadGateway:         true,
		http.StatusServiceUnavailable: true,
		http.StatusGatewayTimeout:     true,
	}
)

type RequestBuilder func(ctx context.Context) (*http.Request, error)

func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, RetryMaxRetries), ctx)
}

// DoWithRetry sends the request produced by build, retrying on transport errors
// and 502/503/504 responses. The builder is called once per attempt so request
// bodies are never reused.
func DoWithRetry(ctx context.Context, client *http.Client, build RequestBuilder) (*http.Response, error) {
	var resp *http.Response
	var permanent error

	operation := func() error {
		req, err := build(ctx)
		if err != nil {
			permanent = err
			return nil
		}
		r, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				permanent = err
				return nil
			}
			return err
		}
		if retryStatusCodes[r.StatusCode] {
			r.Body.Close()
			return fmt.Errorf("ERROR %d: upstream unavailable", r.StatusCode)
		}
		resp = r
		return nil
	}

	notify := func(err error, next time.Duration) {
		logrus.WithField("retry_in", next).Debug("upstream request failed: ", err)
	}

	if err := backoff.RetryNotify(operation, newBackOff(ctx), notify); err != nil {
		return nil, err
	}
	if permanent != nil {
		return nil, permanent
	}
	return resp, nil
}

// GetHttpResponse performs an authenticated GET. On success the caller owns
// the response body.
func GetHttpResponse(ctx context.Context, url, token, header string,
	connectionTimeout time.Duration) (*http.Response, error) {
	client := &http.Client{Timeout: connectionTimeout}
	resp, err := DoWithRetry(ctx, client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if token != "" && header != "" {
			req.Header.Set(header, token)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if err := CheckResponseStatus_(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func CheckResponseStatus_(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := ioutil.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound ||
			resp.StatusCode == http.StatusInternalServerError {
			mes := getMessageError_(string(bodyBytes))
			return fmt.Errorf("ERROR %d: %s", resp.StatusCode, mes)

		} else {
			return fmt.Errorf("ERROR %d: no details for this error", resp.StatusCode)
		}
	}
	return nil
}

func Split_(r rune) bool {
	return r == '{' || r == '}' || r == ':' || r == ','
}

func getMessageError_(bodyString string) string {
	bodySplit := strings.FieldsFunc(bodyString, Split_)
	for idx, field := range bodySplit {
		if strings.Contains(field, "message") && idx+1 < len(bodySplit) {
			return strings.Trim(strings.TrimSpace(bodySplit[idx+1]), "\"")
		}
	}
	return "no details for this error"
}
