// Package gatewayclient is the client's only outbound network edge: JSON
// round-trips to the cloud gateway's /presign, /permit, /sync/push, and
// /sync/pull endpoints (spec.md §6.2), built on the same ports.HTTPClient
// capability uploadqueue.Worker uses for its PUT, so every outbound call
// in the client goes through one injectable seam.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
)

// Client calls the cloud gateway's HTTP API.
type Client struct {
	BaseURL string
	HTTP    ports.HTTPClient
}

// New builds a Client against baseURL (e.g. "https://gateway.example.com").
func New(baseURL string, httpClient ports.HTTPClient) *Client {
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gatewayclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("gatewayclient: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return mzerrors.Wrap(mzerrors.KindNetwork, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gatewayclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gatewayclient: decode response: %w", err)
	}

	return nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusForbidden:
		return mzerrors.New(mzerrors.KindQuota, fmt.Sprintf("gatewayclient: forbidden: %s", body))
	case status == http.StatusServiceUnavailable:
		return mzerrors.New(mzerrors.KindServer, "gatewayclient: gateway unavailable")
	case status >= 500:
		return mzerrors.New(mzerrors.KindServer, fmt.Sprintf("gatewayclient: server error: %s", body))
	default:
		return mzerrors.New(mzerrors.KindUnknown, fmt.Sprintf("gatewayclient: unexpected status %d: %s", status, body))
	}
}

// presignRequestWire/presignResponseWire mirror the gateway's /presign
// wire format (spec.md §6.2).
type presignRequestWire struct {
	UserID      string      `json:"userId"`
	FileName    string      `json:"fileName"`
	ContentType string      `json:"contentType"`
	Permit      *permitWire `json:"permit,omitempty"`
	TraceID     string      `json:"traceId,omitempty"`
}

type presignResponseWire struct {
	URL     string `json:"url"`
	Key     string `json:"key"`
	TraceID string `json:"traceId"`
}

// Presign implements ports.PresignGate against the cloud gateway.
func (c *Client) Presign(ctx context.Context, req ports.PresignRequest) (ports.PresignResponse, error) {
	wire := presignRequestWire{
		UserID: req.UserID.String(), FileName: req.FileName, ContentType: req.ContentType,
		TraceID: req.TraceID.String(),
	}

	if req.Permit != nil {
		pw := permitToWire(*req.Permit)
		wire.Permit = &pw
	}

	var resp presignResponseWire
	if err := c.postJSON(ctx, "/presign", wire, &resp); err != nil {
		return ports.PresignResponse{}, err
	}

	traceID, err := ids.NewTraceID(resp.TraceID)
	if err != nil {
		return ports.PresignResponse{}, fmt.Errorf("gatewayclient: presign response: %w", err)
	}

	return ports.PresignResponse{URL: resp.URL, Key: resp.Key, TraceID: traceID}, nil
}

// permitRequestWire/permitResponseWire mirror the gateway's /permit wire
// format (spec.md §6.3).
type permitRequestWire struct {
	UserID    string `json:"userId"`
	ValidDays int    `json:"validDays,omitempty"`
}

type permitResponseWire struct {
	Permit permitWire `json:"permit"`
}

type permitWire struct {
	UserID     string    `json:"userId"`
	TotalLimit int       `json:"totalLimit"`
	DailyRate  int       `json:"dailyRate"`
	ExpiresAt  time.Time `json:"expiresAt"`
	IssuedAt   time.Time `json:"issuedAt"`
	Signature  string    `json:"signature"`
	Tier       string    `json:"tier"`
	KeyVersion int       `json:"keyVersion"`
}

func permitToWire(p permit.Permit) permitWire {
	return permitWire{
		UserID: p.UserID.String(), TotalLimit: p.TotalLimit, DailyRate: p.DailyRate,
		ExpiresAt: p.ExpiresAt, IssuedAt: p.IssuedAt, Signature: p.Signature,
		Tier: string(p.Tier), KeyVersion: p.KeyVersion,
	}
}

func (w permitWire) toPermit() (permit.Permit, error) {
	userID, err := ids.NewUserID(w.UserID)
	if err != nil {
		return permit.Permit{}, err
	}

	return permit.Permit{
		UserID: userID, TotalLimit: w.TotalLimit, DailyRate: w.DailyRate,
		ExpiresAt: w.ExpiresAt, IssuedAt: w.IssuedAt, Signature: w.Signature,
		Tier: permit.Tier(w.Tier), KeyVersion: w.KeyVersion,
	}, nil
}

// IssuePermit calls /permit and returns the freshly issued Permit, for the
// client's startup/renewal path (spec.md §4.4).
func (c *Client) IssuePermit(ctx context.Context, userID ids.UserID, validDays int) (permit.Permit, error) {
	req := permitRequestWire{UserID: userID.String(), ValidDays: validDays}

	var resp permitResponseWire
	if err := c.postJSON(ctx, "/permit", req, &resp); err != nil {
		return permit.Permit{}, err
	}

	return resp.Permit.toPermit()
}
