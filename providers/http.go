package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/types"
)

// ClientConfig configures the HTTP collaborator clients.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type httpClient struct {
	cfg    ClientConfig
	http   *http.Client
	logger *zap.Logger
}

func newHTTPClient(cfg ClientConfig, logger *zap.Logger, component string) *httpClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &httpClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", component)),
	}
}

func (c *httpClient) post(ctx context.Context, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return unavailable(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return unavailable(path, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("%s rejected: %d %s", path, resp.StatusCode, data))
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// HTTPCRM talks to the CRM's contact API.
type HTTPCRM struct {
	*httpClient
}

// NewHTTPCRM creates the CRM client.
func NewHTTPCRM(cfg ClientConfig, logger *zap.Logger) *HTTPCRM {
	return &HTTPCRM{newHTTPClient(cfg, logger, "crm")}
}

type tagRequest struct {
	ContactID string `json:"contact_id"`
	Tag       string `json:"tag"`
}

// AddTag applies a tag to the contact.
func (c *HTTPCRM) AddTag(ctx context.Context, contactID, tag string) error {
	return c.post(ctx, "/contacts/tags/add", tagRequest{ContactID: contactID, Tag: tag}, nil)
}

// RemoveTag removes a tag from the contact.
func (c *HTTPCRM) RemoveTag(ctx context.Context, contactID, tag string) error {
	return c.post(ctx, "/contacts/tags/remove", tagRequest{ContactID: contactID, Tag: tag}, nil)
}

// UpdateField sets a custom field on the contact.
func (c *HTTPCRM) UpdateField(ctx context.Context, contactID, field, value string) error {
	return c.post(ctx, "/contacts/fields", map[string]string{
		"contact_id": contactID, "field": field, "value": value,
	}, nil)
}

// Deactivate turns off automation for the contact.
func (c *HTTPCRM) Deactivate(ctx context.Context, contactID string) error {
	return c.post(ctx, "/contacts/deactivate", map[string]string{"contact_id": contactID}, nil)
}

// HTTPMessenger talks to the messaging provider.
type HTTPMessenger struct {
	*httpClient
}

// NewHTTPMessenger creates the messaging client.
func NewHTTPMessenger(cfg ClientConfig, logger *zap.Logger) *HTTPMessenger {
	return &HTTPMessenger{newHTTPClient(cfg, logger, "messenger")}
}

// Send dispatches one outbound message.
func (c *HTTPMessenger) Send(ctx context.Context, msg OutboundMessage) error {
	return c.post(ctx, "/messages/send", msg, nil)
}

// HTTPCalendar talks to the booking service.
type HTTPCalendar struct {
	*httpClient
}

// NewHTTPCalendar creates the calendar client.
func NewHTTPCalendar(cfg ClientConfig, logger *zap.Logger) *HTTPCalendar {
	return &HTTPCalendar{newHTTPClient(cfg, logger, "calendar")}
}

// AvailableSlots fetches bookable slots for the contact.
func (c *HTTPCalendar) AvailableSlots(ctx context.Context, contactID string) ([]Slot, error) {
	var out struct {
		Slots []Slot `json:"slots"`
	}
	err := c.post(ctx, "/slots/available", map[string]string{"contact_id": contactID}, &out)
	if err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// Book confirms a slot for the contact.
func (c *HTTPCalendar) Book(ctx context.Context, contactID, slotID string) error {
	return c.post(ctx, "/slots/book", map[string]string{
		"contact_id": contactID, "slot_id": slotID,
	}, nil)
}
