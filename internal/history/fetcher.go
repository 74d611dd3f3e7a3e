package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Developer-AbhinavAF/msg/internal/dtos/chat_dto"
	"github.com/Developer-AbhinavAF/msg/internal/entity"
	app_error "github.com/Developer-AbhinavAF/msg/internal/errors"
	"github.com/Developer-AbhinavAF/msg/internal/store"
)

const requestTimeout = 15 * time.Second

// Fetcher is the stateless request/response client for paged history
// retrieval. One instance per session, bound to the API base URL and the
// bearer token of the logged-in user.
type Fetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewFetcher(baseURL, token string) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// GetMessages fetches one page: GET /chat/{roomId}/messages?offset&limit.
// Messages are returned oldest -> newest within the page.
func (f *Fetcher) GetMessages(ctx context.Context, roomID string, offset, limit int) ([]entity.Message, error) {
	req := chat_dto.GetMessagesRequest{Offset: offset, Limit: limit}
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid history request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/chat/%s/messages", f.baseURL, url.PathEscape(roomID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := httpReq.URL.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	httpReq.URL.RawQuery = q.Encode()
	httpReq.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr chat_dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = "history fetch failed"
		}
		return nil, app_error.NewAppError(resp.StatusCode, msg, "history")
	}

	var body chat_dto.GetMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history page: %w", err)
	}

	log.Debug().Str("roomId", roomID).Int("offset", offset).Int("count", len(body.Messages)).Msg("history: page fetched")
	return body.Messages, nil
}

// PageFunc adapts the fetcher to the pager's fetch signature for a room.
func (f *Fetcher) PageFunc(roomID string) store.FetchPage {
	return func(ctx context.Context, offset, limit int) ([]entity.Message, error) {
		return f.GetMessages(ctx, roomID, offset, limit)
	}
}
