package crawler

import (
	"context"

	"github.com/nao1215/gowget/internal/model"
)

// visit is one fetch unit. It claims l.URL, fetches it, queues the links
// found in the body and returns the page. A unit that loses the claim
// neither fetches nor queues anything.
//
// Links are pushed before visit returns, so the scheduler always sees
// them when it handles this unit's completion.
func (c *Crawler) visit(ctx context.Context, r *run, l Link, claimed bool) (*model.Page, *model.FetchError) {
	if !claimed && !r.visited.Claim(l.URL) {
		return nil, nil
	}

	if ctx.Err() != nil {
		return nil, nil
	}

	resp, err := c.fetcher.Fetch(ctx, l.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, model.NewFetchError(l.URL, err)
	}
	if resp == nil {
		resp = &Response{}
	}

	base := l.URL
	if resp.URL != "" {
		base = resp.URL
	}

	links, err := c.extractor.ExtractLinks(base, resp.Body)
	if err != nil {
		c.logger.Debug("link extraction failed", "url", l.URL, "error", err)
		links = nil
	}

	for _, link := range links {
		r.queue.Push(Link{URL: link, Depth: l.Depth + 1})
	}

	return model.NewPage(l.URL, resp.Body, resp.StatusCode, resp.ContentType), nil
}
