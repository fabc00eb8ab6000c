package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/dukerupert/herald/internal/model"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// Client sends notification mail through Postmark.
type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient returns a Postmark client. baseURL prefixes relative action URLs.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string            `json:"From"`
	To       string            `json:"To"`
	Subject  string            `json:"Subject"`
	HtmlBody string            `json:"HtmlBody"`
	TextBody string            `json:"TextBody"`
	Tag      string            `json:"Tag,omitempty"`
	Metadata map[string]string `json:"Metadata,omitempty"`
}

// SendNotification mails n to toEmail.
func (c *Client) SendNotification(ctx context.Context, toEmail string, n model.Notification) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	textBody := n.Body
	htmlBody := fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Body))
	if link := c.actionLink(n); link != "" {
		title := "Open"
		if n.Metadata != nil && n.Metadata.ActionTitle != "" {
			title = n.Metadata.ActionTitle
		}
		textBody += fmt.Sprintf("\n\n%s: %s", title, link)
		htmlBody += fmt.Sprintf(`<p><a href="%s">%s</a></p>`, html.EscapeString(link), html.EscapeString(title))
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  n.Title,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      string(n.Type),
		Metadata: map[string]string{"notification_id": n.ID},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) actionLink(n model.Notification) string {
	if n.Metadata == nil || n.Metadata.ActionURL == "" {
		return ""
	}
	link := n.Metadata.ActionURL
	if strings.HasPrefix(link, "/") && c.baseURL != "" {
		link = c.baseURL + link
	}
	return link
}
