package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"govlink/checkin-service/internal/models"
)

var ErrUnexpectedResponse = errors.New("unexpected lookup response")

// HTTPClient queries a booking backend over HTTP. The backend answers
// GET {base}/api/appointments/lookup?reference=... with a Response body.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

type HTTPOptions struct {
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

func NewHTTPClient(baseURL string, options HTTPOptions) *HTTPClient {
	client := options.Client
	if client == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   options.Token,
		client:  client,
	}
}

func (c *HTTPClient) Find(ctx context.Context, reference string) (Response, error) {
	endpoint := c.baseURL + "/api/appointments/lookup?reference=" + url.QueryEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, err
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 300 {
			return Response{}, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
		}
		return Response{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if resp.StatusCode == http.StatusNotFound && !out.Success {
		if out.Message == "" {
			out.Message = msgNotFound
		}
		return out, nil
	}
	if resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	if out.Success {
		if out.Data == nil {
			return Response{}, fmt.Errorf("%w: success without data", ErrUnexpectedResponse)
		}
		if !models.ValidAppointmentStatus(out.Data.Status) {
			return Response{}, fmt.Errorf("%w: unknown status %q", ErrUnexpectedResponse, out.Data.Status)
		}
	}
	return out, nil
}
