package gateway

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/push"
)

const maxAttachmentBytes = 10 << 20

// BuildRichContent maps a notification onto push content. An image in the
// metadata is downloaded and staged as an attachment; if that fails the
// content is returned without it.
func (g *Gateway) BuildRichContent(ctx context.Context, n model.Notification) push.Content {
	c := push.Content{
		Title:      n.Title,
		Body:       n.Body,
		Sound:      "default",
		CategoryID: string(n.Type.Category()),
		ThreadID:   string(n.Type),
		Priority:   n.Priority,
		UserInfo: map[string]string{
			"notificationId": n.ID,
			"type":           string(n.Type),
			"userId":         n.UserID,
		},
	}
	for k, v := range n.Data {
		c.UserInfo[k] = v
	}

	if md := n.Metadata; md != nil {
		if md.Sound != "" {
			c.Sound = md.Sound
		}
		if md.Badge != nil {
			b := *md.Badge
			c.Badge = &b
		}
		c.ActionURL = md.ActionURL
		if md.ImageURL != "" {
			att, err := g.downloadAttachment(ctx, md.ImageURL)
			if err != nil {
				g.logger.Warn("attachment skipped", "notification_id", n.ID, "url", md.ImageURL, "error", err)
			} else {
				c.Attachment = att
			}
		}
	}
	if c.Badge == nil {
		if b, ok := g.badge(n.UserID); ok {
			c.Badge = &b
		}
	}
	return c
}

func (g *Gateway) downloadAttachment(ctx context.Context, url string) (*push.Attachment, error) {
	ctx, cancel := context.WithTimeout(ctx, g.attachmentTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	f, err := os.CreateTemp(g.attachmentDir, "attachment-*"+attachmentExt(url, contentType))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxAttachmentBytes {
		err = fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes)
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("stage attachment: %w", err)
	}

	return &push.Attachment{Path: f.Name(), SourceURL: url, ContentType: contentType}, nil
}

// attachmentExt prefers the URL's extension, falling back to the MIME type.
func attachmentExt(url, contentType string) string {
	p := url
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if ext := path.Ext(p); ext != "" && len(ext) <= 5 {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}
