package hindsight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

type (
	// HTTPFetcher retrieves pages from the storage service's REST
	// endpoint. It owns URL construction and page decoding; retry policy
	// stays with the paginator
	HTTPFetcher struct {
		config HTTPConfig
		client *http.Client
	}

	HTTPConfig struct {
		BaseURL      string
		SubscribeKey string
		Client       *http.Client
	}

	// tokenEvent is the wire shape of one event when time tokens are
	// requested
	tokenEvent struct {
		Message   json.RawMessage `json:"message"`
		TimeToken json.Number     `json:"timetoken"`
	}
)

// NewHTTPFetcher creates a fetcher against the storage REST API
func NewHTTPFetcher(cfg HTTPConfig) *HTTPFetcher {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{config: cfg, client: client}
}

// Fetch performs one GET against the history endpoint and decodes the
// returned page. The service responds with a three element array: the
// page's events, its oldest token and its newest token. Tokens travel
// as numbers wider than float64 precision, so decoding goes through
// json.Number throughout
func (f *HTTPFetcher) Fetch(
	ctx context.Context, req *PageRequest,
) (*Page, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet, f.requestURL(req), nil,
	)
	if err != nil {
		return nil, TerminalError(err)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, TransientError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransientError(err)
	}
	return decodePage(body, req.IncludeTokens)
}

func (f *HTTPFetcher) requestURL(req *PageRequest) string {
	q := url.Values{}
	q.Set("count", strconv.Itoa(req.Count))
	if !req.Start.IsZero() {
		q.Set("start", req.Start.String())
	}
	if !req.End.IsZero() {
		q.Set("end", req.End.String())
	}
	if req.Reverse {
		q.Set("reverse", "true")
	}
	if req.IncludeTokens {
		q.Set("include_token", "true")
	}

	return fmt.Sprintf("%s/v2/history/sub-key/%s/channel/%s?%s",
		f.config.BaseURL,
		url.PathEscape(f.config.SubscribeKey),
		url.PathEscape(req.Channel),
		q.Encode(),
	)
}

func statusError(code int) *FetchError {
	err := fmt.Errorf("history request failed: %s", http.StatusText(code))
	kind := Terminal
	switch {
	case code == http.StatusTooManyRequests:
		kind = RateLimited
	case code >= 500:
		kind = Transient
	}
	return &FetchError{Err: err, Kind: kind, Status: code}
}

func decodePage(body []byte, includeTokens bool) (*Page, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelope []json.RawMessage
	if err := dec.Decode(&envelope); err != nil {
		return nil, TerminalError(err)
	}
	if len(envelope) < 3 {
		return nil, TerminalError(
			fmt.Errorf("malformed history response: %d elements",
				len(envelope)),
		)
	}

	oldest, err := decodeToken(envelope[1])
	if err != nil {
		return nil, TerminalError(err)
	}
	newest, err := decodeToken(envelope[2])
	if err != nil {
		return nil, TerminalError(err)
	}

	events, err := decodeEvents(envelope[0], includeTokens)
	if err != nil {
		return nil, TerminalError(err)
	}

	return &Page{Events: events, Oldest: oldest, Newest: newest}, nil
}

func decodeEvents(
	raw json.RawMessage, includeTokens bool,
) ([]*Event, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(items))
	for _, item := range items {
		if !includeTokens {
			events = append(events, &Event{Data: item})
			continue
		}

		var te tokenEvent
		if err := json.Unmarshal(item, &te); err != nil {
			return nil, err
		}
		token, err := ParseTimeToken(te.TimeToken.String())
		if err != nil {
			return nil, err
		}
		events = append(events, &Event{Data: te.Message, Token: token})
	}
	return events, nil
}

func decodeToken(raw json.RawMessage) (TimeToken, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return ParseTimeToken(n.String())
}
