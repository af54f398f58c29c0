package leads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/webchat/internal/chat"
	"github.com/yegors/webchat/internal/config"
	"github.com/yegors/webchat/pkg/logger"
)

// Client submits pre-engagement leads and callback requests to the inquiry
// service. Submissions are best-effort; the caller treats a failure as
// logged-and-forgotten, never retried.
type Client struct {
	baseURL      string
	submitPath   string
	callbackPath string
	formID       string
	httpClient   *http.Client
	logger       *logger.Logger
}

// NewClient creates a lead submission client
func NewClient(cfg config.LeadsConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		submitPath:   cfg.SubmitPath,
		callbackPath: cfg.CallbackPath,
		formID:       cfg.FormID,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		},
		logger: log.Named("leads"),
	}
}

// Submit posts one lead, form-encoded
func (c *Client) Submit(ctx context.Context, lead *chat.Lead) error {
	form := c.buildForm(lead)

	c.logger.Info("Submitting lead",
		logger.String("work_request_id", lead.WorkRequestID),
		logger.String("correlation_id", lead.CorrelationID))

	return c.post(ctx, c.baseURL+c.submitPath, form)
}

// SubmitCallback posts a callback request for the same form fields, used
// when no agent is available and the customer asks to be called back
func (c *Client) SubmitCallback(ctx context.Context, lead *chat.Lead) error {
	form := c.buildForm(lead)

	c.logger.Info("Submitting callback request",
		logger.String("work_request_id", lead.WorkRequestID))

	return c.post(ctx, c.baseURL+c.callbackPath, form)
}

func (c *Client) buildForm(lead *chat.Lead) url.Values {
	form := url.Values{}
	form.Set("firstName", lead.FirstName)
	form.Set("lastName", lead.LastName)
	form.Set("email", lead.Email)
	form.Set("phoneNumber", lead.PhoneNumber)
	form.Set("postalCode", lead.PostalCode)
	form.Set("countryCode", lead.CountryCode)
	form.Set("inquiryType", lead.Topic)
	form.Set("subject", lead.Subject)
	form.Set("workRequestId", lead.WorkRequestID)
	form.Set("correlationId", lead.CorrelationID)
	if c.formID != "" {
		form.Set("formId", c.formID)
	}
	for _, attr := range lead.Attributes {
		form.Add("attributes", attr)
	}
	return form
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("Submission accepted", logger.Int("status", resp.StatusCode))
	return nil
}
