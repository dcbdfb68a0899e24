package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shibukawa/sqllogic"
)

// httpHandler speaks the HTTP query endpoint protocol: statements are POSTed
// as JSON to /v1/query and paginated result pages are followed via next_uri.
// Session state returned by the backend is echoed back on every subsequent
// request, which is how session stickiness works on this protocol.
type httpHandler struct {
	label    string
	baseURL  string
	user     string
	password string
	client   *http.Client
	session  json.RawMessage
}

func newHTTPHandler(cfg sqllogic.Backend) Handler {
	base := cfg.Connection
	if base == "" {
		base = "http://" + cfg.Addr()
	}

	return &httpHandler{
		label:    cfg.Label,
		baseURL:  strings.TrimRight(base, "/"),
		user:     cfg.User,
		password: cfg.Password,
		client:   &http.Client{},
	}
}

type httpQueryRequest struct {
	SQL     string          `json:"sql"`
	Session json.RawMessage `json:"session,omitempty"`
}

type httpQueryResponse struct {
	ID      string          `json:"id"`
	Session json.RawMessage `json:"session,omitempty"`
	Data    [][]any         `json:"data"`
	State   string          `json:"state"`
	Error   *httpQueryError `json:"error"`
	NextURI string          `json:"next_uri"`
}

type httpQueryError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *httpHandler) Label() string {
	return h.label
}

func (h *httpHandler) Protocol() sqllogic.Protocol {
	return sqllogic.ProtocolHTTP
}

// Connect verifies the endpoint is reachable and seeds the session object.
func (h *httpHandler) Connect(ctx context.Context) error {
	_, err := h.query(ctx, "SELECT 1")
	return err
}

func (h *httpHandler) ExecStatement(ctx context.Context, query string) error {
	_, err := h.query(ctx, query)
	return err
}

func (h *httpHandler) ExecQuery(ctx context.Context, query string) ([]Row, error) {
	data, err := h.query(ctx, query)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(data))
	for _, r := range data {
		rows = append(rows, Row(r))
	}

	return rows, nil
}

func (h *httpHandler) Close() error {
	h.session = nil
	h.client.CloseIdleConnections()

	return nil
}

// query submits one statement and drains all result pages.
func (h *httpHandler) query(ctx context.Context, query string) ([][]any, error) {
	body, err := json.Marshal(httpQueryRequest{SQL: query, Session: h.session})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Query-ID", uuid.NewString())

	page, err := h.roundTrip(req)
	if err != nil {
		return nil, err
	}

	data := page.Data

	for page.NextURI != "" {
		next, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+page.NextURI, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build page request: %w", err)
		}

		page, err = h.roundTrip(next)
		if err != nil {
			return nil, err
		}

		data = append(data, page.Data...)
	}

	return data, nil
}

func (h *httpHandler) roundTrip(req *http.Request) (*httpQueryResponse, error) {
	if h.user != "" {
		req.SetBasicAuth(h.user, h.password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if passthroughError(err) {
			return nil, req.Context().Err()
		}

		return nil, &ConnError{Label: h.label, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ConnError{Label: h.label, Err: fmt.Errorf("unexpected status %s: %s", resp.Status, body)}
	}

	var page httpQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &ConnError{Label: h.label, Err: fmt.Errorf("malformed response: %w", err)}
	}

	if len(page.Session) > 0 {
		h.session = page.Session
	}

	if page.Error != nil {
		return nil, &ExecError{Code: strconv.Itoa(page.Error.Code), Message: page.Error.Message}
	}

	return &page, nil
}
