package engine

import "pchat/model"

// DefaultCacheBoundary is the number of trailing messages normalized into
// block form. The cache breakpoint always sits on the last block of the last
// message, so the window stays constant however long the conversation grows.
const DefaultCacheBoundary = 3

// Shape produces the message list to send to a provider.
//
// Messages before the trailing cacheBoundary window are passed through as-is.
// Inside the window plain text is normalized into a single text block, and the
// last content block of the final message is marked cache-eligible. Cache hints
// present on the input are dropped so exactly one block carries one.
//
// Shape never mutates its input.
func Shape(messages []model.Message, cacheBoundary int) []model.Message {
	if cacheBoundary < 1 {
		cacheBoundary = DefaultCacheBoundary
	}
	if len(messages) == 0 {
		return []model.Message{}
	}

	windowStart := len(messages) - cacheBoundary
	if windowStart < 0 {
		windowStart = 0
	}

	shaped := make([]model.Message, len(messages))
	for i, msg := range messages {
		out := model.Message{Role: msg.Role, Timestamp: msg.Timestamp}
		switch {
		case i >= windowStart:
			out.Blocks = msg.Normalized()
		case msg.IsPlain():
			out.Text = msg.Text
		default:
			out.Blocks = msg.Normalized()
		}
		for j := range out.Blocks {
			out.Blocks[j].CacheControl = nil
		}
		shaped[i] = out
	}

	last := &shaped[len(shaped)-1]
	if n := len(last.Blocks); n > 0 {
		last.Blocks[n-1].CacheControl = model.EphemeralCache()
	}

	return shaped
}

// ShapeTools builds the tool list for a request from the project's configured
// servers, in configured order. Tools are deduplicated by name with the first
// occurrence winning. When cache is set the last tool is marked cache-eligible.
func ShapeTools(servers []model.ToolServer, configured []string, cache bool) []model.ToolDef {
	byID := make(map[string]model.ToolServer, len(servers))
	for _, s := range servers {
		byID[s.ID] = s
	}

	seen := make(map[string]bool)
	var tools []model.ToolDef
	for _, id := range configured {
		server, ok := byID[id]
		if !ok {
			continue
		}
		for _, t := range server.Tools {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			t.CacheControl = nil
			tools = append(tools, t)
		}
	}

	if cache && len(tools) > 0 {
		tools[len(tools)-1].CacheControl = model.EphemeralCache()
	}
	return tools
}
