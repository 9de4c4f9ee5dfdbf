package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// Metrics are the counters attached to an alert.
type Metrics struct {
	ScanCount     int64 `json:"scan_count,omitempty"`
	PacketsSent   int64 `json:"packets_sent,omitempty"`
	PacketsFailed int64 `json:"packets_failed,omitempty"`
}

// Alert is the payload for SendAlert and Evaluate.
type Alert struct {
	DeviceID string  `json:"device_id"`
	Type     string  `json:"type,omitempty"`
	Details  any     `json:"details,omitempty"`
	Metrics  Metrics `json:"metrics"`
}

// Credential is the issued credential of a device.
type Credential struct {
	CredentialID string    `json:"credential_id"`
	DeviceID     string    `json:"device_id"`
	PublicKey    string    `json:"public_key"`
	Revoked      bool      `json:"revoked"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RegisterResult is the response of Register.
type RegisterResult struct {
	Certificate Credential `json:"certificate"`
	PublicKey   string     `json:"public_key"`
}

// AlertResult is the response of SendAlert.
type AlertResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Accepted reports whether the alert was applied.
func (r AlertResult) Accepted() bool { return r.Status == "ok" }

// DeviceStatus is the trust and revocation state of one device.
type DeviceStatus struct {
	DeviceID string  `json:"device_id"`
	Trust    float64 `json:"trust"`
	Revoked  bool    `json:"revoked"`
}

// LedgerOverview is the response of GET /ledger.
type LedgerOverview struct {
	Blocks int    `json:"blocks"`
	Root   string `json:"root"`
}

// Block is the exported form of one ledger block.
type Block struct {
	Index             int             `json:"index"`
	Timestamp         string          `json:"timestamp"`
	TimestampUnixNano int64           `json:"timestamp_unix_nano"`
	Payload           json.RawMessage `json:"payload"`
	PrevHash          string          `json:"prev_hash"`
	Hash              string          `json:"hash"`
}

// Time returns the exact block timestamp.
func (b Block) Time() time.Time { return time.Unix(0, b.TimestampUnixNano).UTC() }

// Checkpoint is a signed pin of the chain tip.
type Checkpoint struct {
	Token     string    `json:"token"`
	Length    int       `json:"length"`
	Root      string    `json:"root"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckpointVerdict is the response of VerifyCheckpoint.
type CheckpointVerdict struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length,omitempty"`
	Root   string `json:"root,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DiscoverResult is the response of Discover.
type DiscoverResult struct {
	Discovered []struct {
		IP       string `json:"ip"`
		MAC      string `json:"mac,omitempty"`
		Vendor   string `json:"vendor,omitempty"`
		Hostname string `json:"hostname,omitempty"`
	} `json:"discovered"`
	Registered []string `json:"registered"`
}

// Client talks to one trustd server.
type Client struct {
	base       string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the server at base (e.g. "http://localhost:8080").
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register enrolls deviceID with publicKey.
func (c *Client) Register(ctx context.Context, deviceID, publicKey string) (*RegisterResult, error) {
	var out RegisterResult
	body := map[string]string{"device_id": deviceID, "public_key": publicKey}
	if err := c.call(ctx, http.MethodPost, "/api/v1/register", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendAlert submits an alert to the fast-path classifier.
func (c *Client) SendAlert(ctx context.Context, a Alert) (*AlertResult, error) {
	var out AlertResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/alert", a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Evaluate runs the heuristic pipeline for a.DeviceID.
func (c *Client) Evaluate(ctx context.Context, a Alert) (*DeviceStatus, error) {
	var out DeviceStatus
	if err := c.call(ctx, http.MethodPost, "/api/v1/evaluate", a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDevices returns every tracked device.
func (c *Client) ListDevices(ctx context.Context) ([]DeviceStatus, error) {
	var out []DeviceStatus
	if err := c.call(ctx, http.MethodGet, "/api/v1/devices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Trust returns the trust score of deviceID.
func (c *Client) Trust(ctx context.Context, deviceID string) (float64, error) {
	var out struct {
		Trust float64 `json:"trust"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/trust/"+url.PathEscape(deviceID), nil, &out); err != nil {
		return 0, err
	}
	return out.Trust, nil
}

// LedgerOverview returns the chain length and root hash.
func (c *Client) LedgerOverview(ctx context.Context) (*LedgerOverview, error) {
	var out LedgerOverview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportLedger returns every block in order.
func (c *Client) ExportLedger(ctx context.Context) ([]Block, error) {
	var out []Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/blocks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBlock returns the block at idx.
func (c *Client) GetBlock(ctx context.Context, idx int) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/blocks/"+strconv.Itoa(idx), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLedger asks the server to walk the chain. reason is set when the
// chain is broken.
func (c *Client) VerifyLedger(ctx context.Context) (valid bool, reason string, err error) {
	var out struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &out); err != nil {
		return false, "", err
	}
	return out.Valid, out.Error, nil
}

// Checkpoint requests a signed checkpoint of the current tip.
func (c *Client) Checkpoint(ctx context.Context) (*Checkpoint, error) {
	var out Checkpoint
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/checkpoint", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCheckpoint checks a previously issued checkpoint token.
func (c *Client) VerifyCheckpoint(ctx context.Context, token string) (*CheckpointVerdict, error) {
	var out CheckpointVerdict
	status, body, err := c.send(ctx, http.MethodPost, "/api/v1/ledger/checkpoint/verify", map[string]string{"token": token})
	if err != nil {
		return nil, err
	}
	// A malformed or forged token is a 400 with a verdict body.
	if status != http.StatusOK && status != http.StatusBadRequest {
		return nil, statusError(status, body)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Discover asks the server to sweep target and enroll unseen hosts.
// An empty target uses the server default.
func (c *Client) Discover(ctx context.Context, target string) (*DiscoverResult, error) {
	path := "/api/v1/discover"
	if target != "" {
		path += "?target=" + url.QueryEscape(target)
	}
	var out DiscoverResult
	if err := c.call(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LogTest records an external test outcome in the ledger.
func (c *Client) LogTest(ctx context.Context, test, status string) error {
	return c.call(ctx, http.MethodPost, "/api/v1/log_test", map[string]string{"test": test, "status": status}, nil)
}

// Health returns nil when the server answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/healthz", nil, nil)
}

// call sends reqBody as JSON and decodes a 2xx response into respBody.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	status, body, err := c.send(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	if status >= 300 {
		return statusError(status, body)
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, reqBody any) (int, []byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func statusError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("server error %d: %s", status, msg)
}
