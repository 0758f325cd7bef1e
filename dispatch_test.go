package japi

import (
	"encoding/json"
	"testing"
)

func newTestContext() *Context {
	return New()
}

func newTestClient(c *Context) *Client {
	return c.addClient(newPipeDiscardConn())
}

func TestDispatchBasicRequestResponse(t *testing.T) {
	c := newTestContext()
	_ = c.Register("get_temperature", func(ctx *Context, args, data map[string]any) {
		data["celsius"] = 21.5
	})

	client := newTestClient(c)
	line := []byte(`{"japi_request":"get_temperature","japi_request_no":3,"args":{}}`)

	payload, ok := c.dispatch(client, line)
	if !ok {
		t.Fatal("dispatch should produce a response")
	}

	var resp map[string]any
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}

	if resp["japi_response"] != "get_temperature" {
		t.Fatalf("japi_response = %v, want get_temperature", resp["japi_response"])
	}
	if resp["japi_request_no"] != float64(3) {
		t.Fatalf("japi_request_no = %v, want 3", resp["japi_request_no"])
	}
	data, _ := resp["data"].(map[string]any)
	if data["celsius"] != 21.5 {
		t.Fatalf("data.celsius = %v, want 21.5", data["celsius"])
	}
}

func TestDispatchMalformedJSONProducesNoResponse(t *testing.T) {
	c := newTestContext()
	client := newTestClient(c)

	_, ok := c.dispatch(client, []byte(`not json`))
	if ok {
		t.Fatal("malformed JSON should produce no response")
	}
}

func TestDispatchMissingRequestFieldProducesNoResponse(t *testing.T) {
	c := newTestContext()
	client := newTestClient(c)

	_, ok := c.dispatch(client, []byte(`{"args":{}}`))
	if ok {
		t.Fatal("missing japi_request field should produce no response")
	}
}

func TestDispatchUnknownRequestUsesBuiltinFallback(t *testing.T) {
	c := newTestContext()
	client := newTestClient(c)

	payload, ok := c.dispatch(client, []byte(`{"japi_request":"does_not_exist"}`))
	if !ok {
		t.Fatal("unknown request should still produce a response via the fallback handler")
	}

	var resp map[string]any
	_ = json.Unmarshal(payload, &resp)
	data, _ := resp["data"].(map[string]any)
	if data["error"] != "no request handler found" {
		t.Fatalf("data.error = %v, want the built-in fallback message", data["error"])
	}
}

func TestDispatchUserFallbackOverridesBuiltin(t *testing.T) {
	c := newTestContext()
	_ = c.Register("request_not_found_handler", func(ctx *Context, args, data map[string]any) {
		data["custom"] = true
	})
	client := newTestClient(c)

	payload, ok := c.dispatch(client, []byte(`{"japi_request":"does_not_exist"}`))
	if !ok {
		t.Fatal("dispatch should respond")
	}

	var resp map[string]any
	_ = json.Unmarshal(payload, &resp)
	data, _ := resp["data"].(map[string]any)
	if data["custom"] != true {
		t.Fatal("user-registered request_not_found_handler should win over the built-in")
	}
}

func TestDispatchIncludeArgsEchoesArgs(t *testing.T) {
	c := newTestContext()
	c.SetIncludeArgsInResponse(true)
	_ = c.Register("ping", func(ctx *Context, args, data map[string]any) {})
	client := newTestClient(c)

	payload, ok := c.dispatch(client, []byte(`{"japi_request":"ping","args":{"x":1}}`))
	if !ok {
		t.Fatal("dispatch should respond")
	}

	var resp map[string]any
	_ = json.Unmarshal(payload, &resp)
	args, _ := resp["args"].(map[string]any)
	if args["x"] != float64(1) {
		t.Fatalf("echoed args = %v, want {x:1}", resp["args"])
	}
}

func TestDispatchPushsrvSubscribeAndUnsubscribe(t *testing.T) {
	c := newTestContext()
	ps, err := c.RegisterPushService("alerts")
	if err != nil {
		t.Fatalf("RegisterPushService: %v", err)
	}
	client := newTestClient(c)

	subPayload, ok := c.dispatch(client, []byte(`{"japi_request":"japi_pushsrv_subscribe","args":{"service":"ALERTS"}}`))
	if !ok {
		t.Fatal("subscribe should respond")
	}
	var subResp map[string]any
	_ = json.Unmarshal(subPayload, &subResp)
	subData, _ := subResp["data"].(map[string]any)
	if subData["success"] != true {
		t.Fatalf("subscribe data = %v, want success:true", subData)
	}
	if subData["service"] != "ALERTS" {
		t.Fatalf("subscribe echoes the requested name, got %v", subData["service"])
	}
	if ps.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", ps.SubscriberCount())
	}

	unsubPayload, ok := c.dispatch(client, []byte(`{"japi_request":"japi_pushsrv_unsubscribe","args":{"service":"alerts"}}`))
	if !ok {
		t.Fatal("unsubscribe should respond")
	}
	var unsubResp map[string]any
	_ = json.Unmarshal(unsubPayload, &unsubResp)
	unsubData, _ := unsubResp["data"].(map[string]any)
	if unsubData["success"] != true {
		t.Fatalf("unsubscribe data = %v, want success:true", unsubData)
	}
	if _, present := unsubData["service"]; present {
		t.Fatal("unsubscribe response must never include a service key")
	}
	if ps.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount after unsubscribe = %d, want 0", ps.SubscriberCount())
	}
}

func TestDispatchPushsrvListAndCmdList(t *testing.T) {
	c := newTestContext()
	_, _ = c.RegisterPushService("alerts")
	_ = c.Register("ping", func(*Context, map[string]any, map[string]any) {})
	client := newTestClient(c)

	listPayload, ok := c.dispatch(client, []byte(`{"japi_request":"japi_pushsrv_list"}`))
	if !ok {
		t.Fatal("pushsrv_list should respond")
	}
	var listResp map[string]any
	_ = json.Unmarshal(listPayload, &listResp)
	listData, _ := listResp["data"].(map[string]any)
	services, _ := listData["services"].([]any)
	if len(services) != 1 || services[0] != "alerts" {
		t.Fatalf("services = %v, want [alerts]", services)
	}

	cmdPayload, ok := c.dispatch(client, []byte(`{"japi_request":"japi_cmd_list"}`))
	if !ok {
		t.Fatal("cmd_list should respond")
	}
	var cmdResp map[string]any
	_ = json.Unmarshal(cmdPayload, &cmdResp)
	cmdData, _ := cmdResp["data"].(map[string]any)
	commands, _ := cmdData["commands"].([]any)
	found := false
	for _, name := range commands {
		if name == "ping" {
			found = true
		}
	}
	if !found {
		t.Fatalf("commands = %v, want to include ping", commands)
	}
}

func TestCascadeRemovesSubscriptionOnDisconnect(t *testing.T) {
	c := newTestContext()
	ps, _ := c.RegisterPushService("alerts")
	client := newTestClient(c)

	_, _ = c.dispatch(client, []byte(`{"japi_request":"japi_pushsrv_subscribe","args":{"service":"alerts"}}`))
	if ps.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount before disconnect = %d, want 1", ps.SubscriberCount())
	}

	c.removeClient(client.ID)

	if ps.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount after disconnect = %d, want 0", ps.SubscriberCount())
	}
}
