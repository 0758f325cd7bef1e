package japi

// Built-in handler names, registered on every Context at construction time
// under the reserved "japi_" prefix. Wire request names are
// case-insensitive, so the exact case here is cosmetic.
const (
	builtinRequestNotFoundName    = "japi_request_not_found_handler"
	builtinPushsrvSubscribeName   = "japi_pushsrv_subscribe"
	builtinPushsrvUnsubscribeName = "japi_pushsrv_unsubscribe"
	builtinPushsrvListName        = "japi_pushsrv_list"
	builtinCmdListName            = "japi_cmd_list"

	// userFallbackName is the unprefixed name a user may register to
	// override the built-in default fallback handler. It predates the
	// reserved-prefix rule and is therefore exempt from it.
	userFallbackName = "request_not_found_handler"
)

func registerBuiltins(h *handlerRegistry) {
	_ = h.register(builtinRequestNotFoundName, builtinRequestNotFound)
	_ = h.register(builtinPushsrvSubscribeName, builtinPushsrvSubscribe)
	_ = h.register(builtinPushsrvUnsubscribeName, builtinPushsrvUnsubscribe)
	_ = h.register(builtinPushsrvListName, builtinPushsrvList)
	_ = h.register(builtinCmdListName, builtinCmdList)
}

func builtinRequestNotFound(ctx *Context, args map[string]any, data map[string]any) {
	data["error"] = "no request handler found"
}

func clientIDFromArgs(args map[string]any) (uint64, bool) {
	v, ok := args["socket"]
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func builtinPushsrvSubscribe(ctx *Context, args map[string]any, data map[string]any) {
	name, ok := args["service"].(string)
	if !ok {
		data["success"] = false
		data["message"] = "Push service not found."
		return
	}

	ps, found := ctx.pushServices.lookupCaseInsensitive(name)
	if !found {
		data["service"] = name
		data["success"] = false
		data["message"] = "Push service not found."
		return
	}

	clientID, _ := clientIDFromArgs(args)
	client := ctx.lookupClient(clientID)
	if client == nil {
		data["service"] = name
		data["success"] = false
		data["message"] = "Push service not found."
		return
	}

	ps.subscribe(client)
	data["service"] = name
	data["success"] = true
}

func builtinPushsrvUnsubscribe(ctx *Context, args map[string]any, data map[string]any) {
	name, ok := args["service"].(string)
	if !ok {
		data["success"] = false
		data["message"] = "Push service not found."
		return
	}

	ps, found := ctx.pushServices.lookupCaseInsensitive(name)
	if !found {
		data["success"] = false
		data["message"] = "Push service not found."
		return
	}

	clientID, _ := clientIDFromArgs(args)
	if ps.unsubscribeFirst(clientID) {
		data["success"] = true
		return
	}

	data["success"] = false
	data["message"] = "Can't unsubscribe a service that wasn't subscribed before."
}

func builtinPushsrvList(ctx *Context, args map[string]any, data map[string]any) {
	data["services"] = ctx.pushServices.names()
}

func builtinCmdList(ctx *Context, args map[string]any, data map[string]any) {
	data["commands"] = ctx.handlers.names()
}
