package commentservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrCaptchaFailed = errors.New("captcha verification failed")

// CaptchaVerifier checks a client supplied CAPTCHA token. Any failure, including timeouts, must be reported as an error.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// SiteVerifyClient talks to a siteverify style endpoint (Turnstile, reCAPTCHA, hCaptcha).
type SiteVerifyClient struct {
	client *resty.Client
	url    string
	secret string
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewSiteVerifyClient retries once on transport errors and 5xx responses, each attempt bounded by timeout.
func NewSiteVerifyClient(url, secret string, timeout time.Duration) *SiteVerifyClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &SiteVerifyClient{client: client, url: url, secret: secret}
}

func (c *SiteVerifyClient) Verify(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing token", ErrCaptchaFailed)
	}

	var out siteVerifyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret":   c.secret,
			"response": token,
			"remoteip": remoteIP,
		}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCaptchaFailed, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: provider returned %d", ErrCaptchaFailed, resp.StatusCode())
	}

	if !out.Success {
		return fmt.Errorf("%w: %s", ErrCaptchaFailed, strings.Join(out.ErrorCodes, ","))
	}

	return nil
}

// DisabledVerifier accepts every token. It is only wired when no CAPTCHA secret is configured in development.
type DisabledVerifier struct{}

func (DisabledVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	return nil
}
