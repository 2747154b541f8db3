package tools

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/arium/arium/pkg/protocol"
)

// RegisterWebTools installs web.fetch, a headless-browser page fetch
// built on go-rod rather than a bare net/http GET, so pages that
// render content client-side still produce usable HTML.
func RegisterWebTools(reg *Registry) {
	reg.Register(Registration{
		Descriptor: Descriptor{
			ID:          "web.fetch",
			Name:        "Fetch web page",
			Description: "Loads a URL in a headless browser and returns the page title and rendered HTML.",
			Runner:      RunnerBuiltin,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"url"},
				"properties": map[string]interface{}{
					"url": map[string]interface{}{"type": "string"},
				},
			},
			Permissions: []string{"net"},
		},
		Builtin: func(ctx context.Context, args map[string]interface{}) protocol.ToolResult {
			url, _ := args["url"].(string)
			if url == "" {
				return protocol.ErrResult(protocol.ErrSchemaViolation, "url is required")
			}
			return fetchPage(ctx, url)
		},
	})
}

func fetchPage(ctx context.Context, url string) protocol.ToolResult {
	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return protocol.ErrResult(protocol.ErrRunnerFailure, "launch browser: "+err.Error())
	}
	defer browser.Close()

	pg, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return protocol.ErrResult(protocol.ErrRunnerFailure, "open page: "+err.Error())
	}
	defer pg.Close()

	if err := pg.Timeout(30 * time.Second).WaitLoad(); err != nil {
		return protocol.ErrResult(protocol.ErrTimeout, "page load timed out: "+err.Error())
	}

	text, err := pg.Info()
	if err != nil {
		return protocol.ErrResult(protocol.ErrRunnerFailure, "read page info: "+err.Error())
	}

	html, err := pg.HTML()
	if err != nil {
		return protocol.ErrResult(protocol.ErrRunnerFailure, "read page html: "+err.Error())
	}

	return protocol.OkResult(map[string]interface{}{
		"url":   url,
		"title": text.Title,
		"html":  html,
	})
}
