package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/prilive-com/circlebot/internal/resilience"
	"github.com/prilive-com/circlebot/internal/scrub"
	"github.com/prilive-com/circlebot/tg"
)

const maxPollResponseSize = 50 << 20

type envelope struct {
	OK          bool                   `json:"ok"`
	Result      json.RawMessage        `json:"result,omitempty"`
	ErrorCode   int                    `json:"error_code,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  *tg.ResponseParameters `json:"parameters,omitempty"`
}

// call issues a GET for method through the breaker and returns the result
// field. Only transport failures and 5xx replies count against the breaker;
// Bot API refusals come back as *tg.APIError.
func (c *PollingClient) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	apiURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token.Value(), method)
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", method, scrub.Error(err, c.token))
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollResponseSize+1))
		if err != nil {
			return nil, err
		}
		if len(body) > maxPollResponseSize {
			return nil, tg.ErrResponseTooLarge
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return body, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, scrub.Error(breakerError(err), c.token))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !env.OK {
		apiErr := tg.NewAPIError(method, env.ErrorCode, env.Description)
		apiErr.Parameters = env.Parameters
		return nil, apiErr
	}
	return env.Result, nil
}

func breakerError(err error) error {
	if resilience.Rejected(err) {
		return fmt.Errorf("%w: %w", tg.ErrCircuitOpen, err)
	}
	return err
}

// deleteWebhook removes a stale webhook so getUpdates is allowed.
func (c *PollingClient) deleteWebhook(ctx context.Context) error {
	params := url.Values{}
	params.Set("drop_pending_updates", "false")
	_, err := c.call(ctx, "deleteWebhook", params)
	return err
}

func (c *PollingClient) fetchUpdates(ctx context.Context) ([]tg.Update, error) {
	params := url.Values{}
	params.Set("timeout", fmt.Sprint(c.timeout))
	params.Set("limit", fmt.Sprint(c.limit))
	params.Set("offset", fmt.Sprint(c.offset.Load()))
	if len(c.allowedUpdates) > 0 {
		encoded, err := json.Marshal(c.allowedUpdates)
		if err != nil {
			return nil, err
		}
		params.Set("allowed_updates", string(encoded))
	}

	result, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []tg.Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates: decode updates: %w", err)
	}
	return updates, nil
}

