package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/featured-sync/pkg/featuredsync"
	"github.com/tendant/featured-sync/pkg/featuredsync/api"
)

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a featured-sync server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) PutPostType(ctx context.Context, slug string, supportsFeaturedImage bool) (*featuredsync.PostType, error) {
	var out featuredsync.PostType
	err := c.do(ctx, http.MethodPost, "/post-types", nil, api.PutPostTypeRequest{
		Slug:                  slug,
		SupportsFeaturedImage: supportsFeaturedImage,
	}, &out)
	return &out, err
}

func (c *Client) PutMedia(ctx context.Context, media featuredsync.MediaObject) (*featuredsync.MediaObject, error) {
	var out featuredsync.MediaObject
	err := c.do(ctx, http.MethodPut, "/media/"+strconv.FormatInt(int64(media.ID), 10), nil, media, &out)
	return &out, err
}

func (c *Client) CreateDocument(ctx context.Context, postType string, featured featuredsync.MediaID) (*featuredsync.Document, error) {
	var out featuredsync.Document
	err := c.do(ctx, http.MethodPost, "/documents", nil, api.CreateDocumentRequest{
		PostType:      postType,
		FeaturedMedia: featured,
	}, &out)
	return &out, err
}

func (c *Client) GetDocument(ctx context.Context, id uuid.UUID) (*featuredsync.Document, error) {
	var out featuredsync.Document
	err := c.do(ctx, http.MethodGet, "/documents/"+id.String(), nil, nil, &out)
	return &out, err
}

func (c *Client) SetFeaturedMedia(ctx context.Context, id uuid.UUID, featured featuredsync.MediaID) (*featuredsync.Document, error) {
	var out featuredsync.Document
	err := c.do(ctx, http.MethodPut, "/documents/"+id.String()+"/featured-media", nil, api.SetFeaturedMediaRequest{
		FeaturedMedia: featured,
	}, &out)
	return &out, err
}

func (c *Client) DrainNotices(ctx context.Context, id uuid.UUID) ([]featuredsync.Notice, error) {
	var out api.NoticesResponse
	err := c.do(ctx, http.MethodGet, "/documents/"+id.String()+"/notices", nil, nil, &out)
	return out.Notices, err
}

func (c *Client) CreateBlock(ctx context.Context, documentID uuid.UUID, attrs featuredsync.BlockAttributes) (*featuredsync.Block, error) {
	var out featuredsync.Block
	err := c.do(ctx, http.MethodPost, "/documents/"+documentID.String()+"/blocks", nil, api.CreateBlockRequest{
		Attributes: attrs,
	}, &out)
	return &out, err
}

func (c *Client) ListBlocks(ctx context.Context, documentID uuid.UUID) ([]featuredsync.Block, error) {
	var out []featuredsync.Block
	err := c.do(ctx, http.MethodGet, "/documents/"+documentID.String()+"/blocks", nil, nil, &out)
	return out, err
}

func (c *Client) GetBlock(ctx context.Context, id uuid.UUID) (*featuredsync.Block, error) {
	var out featuredsync.Block
	err := c.do(ctx, http.MethodGet, "/blocks/"+id.String(), nil, nil, &out)
	return &out, err
}

func (c *Client) SetAttributes(ctx context.Context, id uuid.UUID, change featuredsync.AttributeChange, wait bool) (*featuredsync.Block, error) {
	var out featuredsync.Block
	err := c.do(ctx, http.MethodPatch, "/blocks/"+id.String()+"/attributes", waitQuery(wait), change, &out)
	return &out, err
}

func (c *Client) ToggleSync(ctx context.Context, id uuid.UUID, wait bool) (*featuredsync.Block, error) {
	var out featuredsync.Block
	err := c.do(ctx, http.MethodPost, "/blocks/"+id.String()+"/sync/toggle", waitQuery(wait), nil, &out)
	return &out, err
}

func (c *Client) GetSyncState(ctx context.Context, id uuid.UUID) (*featuredsync.BlockSyncInfo, error) {
	var out featuredsync.BlockSyncInfo
	err := c.do(ctx, http.MethodGet, "/blocks/"+id.String()+"/sync", nil, nil, &out)
	return &out, err
}

func waitQuery(wait bool) url.Values {
	if !wait {
		return nil
	}
	return url.Values{"wait": []string{"true"}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
