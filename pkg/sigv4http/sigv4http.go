// Package sigv4http provides a SigV4-signed HTTP client for IAM-
// authenticated AWS services that have no dedicated Go SDK client —
// Neptune's openCypher-over-HTTPS endpoint and an OpenSearch domain's
// REST API. It is the idiomatic substitute for a hand-rolled client
// library: aws-sdk-go-v2 ships the signer, not a full client, for
// exactly these two services.
package sigv4http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssigner "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// Client issues SigV4-signed HTTP requests against a single AWS service
// endpoint (e.g. "es" for OpenSearch, "neptune-db" for Neptune).
type Client struct {
	HTTP        *http.Client
	Signer      *awssigner.Signer
	Credentials aws.CredentialsProvider
	Region      string
	Service     string
	BaseURL     string
}

// New returns a Client that signs every request for service/region using
// creds, with requestTimeout applied per call.
func New(baseURL, service, region string, creds aws.CredentialsProvider, requestTimeout time.Duration) *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: requestTimeout},
		Signer:      awssigner.NewSigner(),
		Credentials: creds,
		Region:      region,
		Service:     service,
		BaseURL:     baseURL,
	}
}

// Do sends a signed POST of body (typically a JSON request) to path and
// returns the raw response body, or an error if the call did not return
// a 2xx status.
func (c *Client) Do(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sigv4http: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.sign(ctx, req, body); err != nil {
		return nil, fmt.Errorf("sigv4http: sign request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sigv4http: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sigv4http: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// Get sends a signed GET to path and returns the raw response body, or
// an error if the call did not return a 2xx status. A *StatusError with
// StatusCode 404 lets callers distinguish "not found" from a transport
// failure.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("sigv4http: build request: %w", err)
	}

	if err := c.sign(ctx, req, nil); err != nil {
		return nil, fmt.Errorf("sigv4http: sign request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sigv4http: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sigv4http: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) sign(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := c.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])
	return c.Signer.SignHTTP(ctx, creds, req, payloadHash, c.Service, c.Region, time.Now())
}

// StatusError is returned when the remote service responds with a
// non-2xx status; callers inspect StatusCode to decide whether the
// failure is a retryable transient error or a fatal schema/config error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sigv4http: unexpected status %d: %s", e.StatusCode, e.Body)
}
