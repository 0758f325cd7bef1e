package japi

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// dispatch processes exactly one line, already stripped of its line
// terminator. It returns the JSON payload to write (without a trailing
// newline) and true, or (nil, false) when no response should be produced
// at all: unparseable input and a missing japi_request field produce
// silence rather than an error reply — the client is left to time out or
// retry. A response envelope that fails to serialize is also dropped
// (and logged) without a reply.
func (c *Context) dispatch(client *Client, line []byte) ([]byte, bool) {
	var req map[string]any
	if err := json.Unmarshal(line, &req); err != nil {
		if c.metrics != nil {
			c.metrics.RequestsParseErrors.Inc()
		}
		c.logger.Debug("request line failed to parse as JSON",
			zap.Uint64("client_id", client.ID), zap.Error(err))
		return nil, false
	}

	reqName, ok := req["japi_request"].(string)
	if !ok {
		if c.metrics != nil {
			c.metrics.RequestsMalformed.Inc()
		}
		c.logger.Debug("request missing japi_request string field",
			zap.Uint64("client_id", client.ID))
		return nil, false
	}

	resp := map[string]any{"japi_response": reqName}
	if reqNo, present := req["japi_request_no"]; present {
		resp["japi_request_no"] = reqNo
	}

	args, hadArgs := req["args"].(map[string]any)
	if !hadArgs || args == nil {
		args = map[string]any{}
	}
	if c.includeArgs {
		resp["args"] = args
	}

	if isPushsrvSubscriptionRequest(reqName) {
		args["socket"] = client.ID
	}

	handler := c.resolveHandler(reqName)

	data := map[string]any{}
	if handler != nil {
		handler(c, args, data)
	}
	if c.metrics != nil {
		c.metrics.RequestsDispatched.Inc()
	}

	resp["data"] = data

	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("failed to serialize response envelope",
			zap.String("request", reqName), zap.Error(err))
		return nil, false
	}

	return payload, true
}

func isPushsrvSubscriptionRequest(name string) bool {
	return strings.EqualFold(name, builtinPushsrvSubscribeName) ||
		strings.EqualFold(name, builtinPushsrvUnsubscribeName)
}

// resolveHandler implements the fallback chain: the named handler, else a
// user-registered unprefixed "request_not_found_handler" (which wins if
// present), else the library's own built-in fallback.
func (c *Context) resolveHandler(name string) Handler {
	if h, ok := c.handlers.lookup(name); ok {
		return h
	}
	if h, ok := c.handlers.lookup(userFallbackName); ok {
		return h
	}
	h, _ := c.handlers.lookup(builtinRequestNotFoundName)
	return h
}
