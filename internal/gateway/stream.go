package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecoshop/ecoshop/internal/domain"
)

// Stream waits for task events over the websocket endpoint.
// The wait is bounded by the same budget as polling (PollInterval * PollAttempts).
// Failures to connect or a dropped connection are reported as domain.ErrTransport.
func (c *Client) Stream(ctx context.Context, taskID string) (*domain.ProductPayload, error) {
	wsURL, err := c.streamURL(taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	parent := ctx
	budget := c.cfg.PollInterval * time.Duration(c.cfg.PollAttempts)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	header := http.Header{}
	header.Set("User-Agent", c.cfg.UserAgent)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
		}
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, fmt.Errorf("%w: dial task stream: %v", domain.ErrTransport, err)
	}
	defer conn.Close()

	// unblock ReadJSON when the budget expires
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log := c.logger.WithField("task_id", taskID)
	for {
		var ev domain.TaskEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if parent.Err() != nil {
				return nil, parent.Err()
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: task %s not resolved within %s", domain.ErrTimeout, taskID, budget)
			}
			return nil, fmt.Errorf("%w: task stream closed: %v", domain.ErrTransport, err)
		}

		log.WithField("status", ev.Status).Debug("Task event")

		switch ev.Status {
		case domain.WireStatusCompleted:
			if ev.Data == nil {
				return nil, fmt.Errorf("%w: completed event without data", domain.ErrInvalidResponse)
			}
			return ev.Data, nil
		case domain.WireStatusError:
			return nil, fmt.Errorf("%w: %s", domain.ErrAnalysisFailed, orDefault(ev.Error, "analysis failed"))
		}
	}
}

// streamURL rewrites the base URL onto the websocket scheme
func (c *Client) streamURL(taskID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/product/" + url.PathEscape(taskID) + "/stream"
	return u.String(), nil
}
