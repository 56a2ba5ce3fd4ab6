package httpclient

import (
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-livy/logger"
)

const (
	defaultMaxPayloadLogBytes = 1024

	msgRequest  = "REST client request"
	msgResponse = "REST client response"
	msgRetry    = "REST client retrying request"
	msgFailed   = "REST client request failed"
)

func (c *client) maxPayloadBytes() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return defaultMaxPayloadLogBytes
}

func (c *client) withPreview(event logger.LogEvent, body []byte) logger.LogEvent {
	limit := c.maxPayloadBytes()
	truncated := "false"
	preview := body
	if len(body) > limit {
		truncated = "true"
		preview = body[:limit]
	}
	return event.
		Int("body_size", len(body)).
		Str("body_truncated", truncated).
		Bytes("body_preview", preview)
}

func (c *client) logRequest(req *nethttp.Request, body []byte, traceID string) {
	event := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID)
	if n := len(req.Header); n > 0 {
		event = event.Int("header_count", n)
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	event.Msg(msgRequest)

	if !c.config.LogPayloads {
		return
	}
	debug := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID).
		Interface("headers", req.Header)
	c.withPreview(debug, body).Msg(msgRequest)
}

func (c *client) logResponse(resp *Response, traceID string) {
	event := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", traceID)
	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
	}
	event.Msg(msgResponse)

	if !c.config.LogPayloads {
		return
	}
	debug := c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", traceID).
		Interface("headers", resp.Headers)
	c.withPreview(debug, resp.Body).Msg(msgResponse)
}

func (c *client) logRetry(method, url, traceID string, attempt int, wait time.Duration, err error) {
	c.logger.Warn().
		Str("method", method).
		Str("url", url).
		Str("request_id", traceID).
		Int("attempt", attempt+1).
		Dur("wait", wait).
		Err(err).
		Msg(msgRetry)
}

func (c *client) logFailure(method, url, traceID string, attempts int, elapsed time.Duration, err error) {
	c.logger.Error().
		Str("method", method).
		Str("url", url).
		Str("request_id", traceID).
		Int("attempts", attempts).
		Dur("elapsed", elapsed).
		Err(err).
		Msg(msgFailed)
}
