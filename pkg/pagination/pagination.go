// Package pagination normalizes paginated SDK results and optionally walks
// follow-up pages until a configured item cap is reached.
package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/toolbridge/sdk-mcp/pkg/catalog"
	"github.com/toolbridge/sdk-mcp/pkg/result"
)

const (
	defaultMaxItems = 500
	defaultMaxPages = 20
)

// Response fields that carry the page items.
var itemFields = []string{"items", "data", "results", "entries", "values"}

// Response fields that carry the follow-up cursor.
var cursorFields = []string{"nextToken", "next_token", "nextCursor", "next_cursor",
	"nextPageToken", "next_page_token", "continue", "after"}

// Request parameters a follow-up cursor can be fed back through.
var cursorParams = []string{"continue", "cursor", "page_token", "pageToken",
	"next_token", "nextToken", "after"}

// Request parameters that number pages directly. Used when the response
// carries items but no cursor.
var pageParams = []string{"page", "page_number", "pageNumber"}

// Request parameters that offset into the result set.
var offsetParams = []string{"offset", "skip"}

// Item fields usable as a dedup identity, in preference order.
var identityFields = []string{"id", "uid", "name"}

// Options configure collection behavior.
type Options struct {
	// MaxItems caps the total number of collected items.
	MaxItems int
	// MaxPages bounds follow-up fetches regardless of cursors.
	MaxPages int
	// AutoCollect walks follow-up pages automatically; when false a single
	// page is returned with its cursor exposed for the caller to resume.
	AutoCollect bool
}

func (o Options) withDefaults() Options {
	if o.MaxItems <= 0 {
		o.MaxItems = defaultMaxItems
	}
	if o.MaxPages <= 0 {
		o.MaxPages = defaultMaxPages
	}
	return o
}

// FetchFunc invokes the underlying tool once with the given arguments.
type FetchFunc func(ctx context.Context, args map[string]any) *result.Invocation

// Collector normalizes invocation results.
type Collector struct {
	opts Options
}

// New creates a collector.
func New(opts Options) *Collector {
	return &Collector{opts: opts.withDefaults()}
}

// Collect runs fetch once and, when the response is recognizably paginated and
// auto-collection is on, keeps fetching follow-up pages. All returned values
// are JSON-normalized. A failure on a follow-up page yields a partial result
// carrying both the items gathered so far and the failure.
func (c *Collector) Collect(ctx context.Context, d *catalog.Descriptor, args map[string]any, fetch FetchFunc) *result.Invocation {
	first := fetch(ctx, args)
	if !first.OK() || first.DryRun {
		return first
	}

	value, err := normalize(first.Value)
	if err != nil {
		return result.Fail(result.NewFailure(result.KindInternal, result.OriginPagination,
			"%s returned a value that cannot be serialized: %v", d.Name, err))
	}

	page, ok := pageOf(value)
	if !ok {
		if seq, isSeq := value.([]any); isSeq && c.opts.AutoCollect {
			if param, byOffset, found := numberedParamFor(d); found {
				return c.collectNumbered(ctx, d, args, fetch, param, byOffset, seq)
			}
		}
		return c.passthrough(value)
	}

	if page.cursor == "" && c.opts.AutoCollect {
		// An item envelope with no cursor may still paginate through a page
		// number or offset parameter on the call.
		if param, byOffset, found := numberedParamFor(d); found {
			return c.collectNumbered(ctx, d, args, fetch, param, byOffset, page.items)
		}
	}

	if !c.opts.AutoCollect || page.cursor == "" {
		return c.singlePage(page)
	}

	param, ok := cursorParamFor(d)
	if !ok {
		// Paginated response but no way to feed the cursor back; report the
		// single page honestly rather than guessing a parameter.
		slog.Debug("no cursor parameter, returning single page", "tool", d.Name)
		return c.singlePage(page)
	}

	return c.collectPages(ctx, d, args, fetch, param, page)
}

func (c *Collector) collectPages(ctx context.Context, d *catalog.Descriptor, args map[string]any, fetch FetchFunc, param string, first page) *result.Invocation {
	items := first.items
	seen := seedIdentities(items)
	cursor := first.cursor
	pages := 1

	for cursor != "" && len(items) < c.opts.MaxItems && pages < c.opts.MaxPages {
		next := cloneArgs(args)
		next[param] = cursor

		inv := fetch(ctx, next)
		pages++
		if !inv.OK() {
			partial := result.Success(items)
			partial.PagesFetched = pages
			partial.Failure = result.NewFailure(inv.Failure.Kind, result.OriginPagination,
				"%s: page %d failed: %s", d.Name, pages, inv.Failure.Message)
			return partial
		}

		value, err := normalize(inv.Value)
		if err != nil {
			partial := result.Success(items)
			partial.PagesFetched = pages
			partial.Failure = result.NewFailure(result.KindInternal, result.OriginPagination,
				"%s: page %d cannot be serialized: %v", d.Name, pages, err)
			return partial
		}
		p, ok := pageOf(value)
		if !ok {
			// Upstream changed shape mid-walk; stop with what we have.
			break
		}
		items = appendUnique(items, p.items, seen)
		cursor = p.cursor
	}

	truncated := false
	if len(items) > c.opts.MaxItems {
		items = items[:c.opts.MaxItems]
		truncated = true
	} else if cursor != "" {
		truncated = true
	}

	inv := result.Success(items)
	inv.PagesFetched = pages
	inv.Truncated = truncated
	return inv
}

// collectNumbered walks a numbered sequence of pages by advancing a page or
// offset parameter. The end of the result set is an empty page; there is no
// cursor to report, so stopping at a cap marks the result truncated.
func (c *Collector) collectNumbered(ctx context.Context, d *catalog.Descriptor, args map[string]any, fetch FetchFunc, param string, byOffset bool, first []any) *result.Invocation {
	items := first
	seen := seedIdentities(items)
	pages := 1
	pageNo := intArg(args, param)
	if pageNo < 1 {
		pageNo = 1
	}
	offset := intArg(args, param) + len(first)

	morePages := len(first) > 0
	for morePages && len(items) < c.opts.MaxItems && pages < c.opts.MaxPages {
		next := cloneArgs(args)
		if byOffset {
			next[param] = offset
		} else {
			pageNo++
			next[param] = pageNo
		}

		inv := fetch(ctx, next)
		pages++
		if !inv.OK() {
			partial := result.Success(items)
			partial.PagesFetched = pages
			partial.Failure = result.NewFailure(inv.Failure.Kind, result.OriginPagination,
				"%s: page %d failed: %s", d.Name, pages, inv.Failure.Message)
			return partial
		}

		value, err := normalize(inv.Value)
		if err != nil {
			partial := result.Success(items)
			partial.PagesFetched = pages
			partial.Failure = result.NewFailure(result.KindInternal, result.OriginPagination,
				"%s: page %d cannot be serialized: %v", d.Name, pages, err)
			return partial
		}

		batch := itemsOf(value)
		if len(batch) == 0 {
			morePages = false
			break
		}
		items = appendUnique(items, batch, seen)
		offset += len(batch)
	}

	truncated := morePages && (len(items) >= c.opts.MaxItems || pages >= c.opts.MaxPages)
	if len(items) > c.opts.MaxItems {
		items = items[:c.opts.MaxItems]
	}

	inv := result.Success(items)
	inv.PagesFetched = pages
	inv.Truncated = truncated
	return inv
}

func (c *Collector) singlePage(p page) *result.Invocation {
	payload := map[string]any{"items": p.items}
	if p.cursor != "" {
		payload["next_cursor"] = p.cursor
	}
	items := p.items
	truncated := false
	if len(items) > c.opts.MaxItems {
		payload["items"] = items[:c.opts.MaxItems]
		truncated = true
	}
	inv := result.Success(payload)
	inv.PagesFetched = 1
	inv.Truncated = truncated || p.cursor != ""
	return inv
}

// passthrough handles values that are not cursor-paginated. Plain sequences
// still respect the item cap.
func (c *Collector) passthrough(value any) *result.Invocation {
	if seq, ok := value.([]any); ok && len(seq) > c.opts.MaxItems {
		inv := result.Success(seq[:c.opts.MaxItems])
		inv.Truncated = true
		return inv
	}
	return result.Success(value)
}

// page is one decoded page of a paginated response.
type page struct {
	items  []any
	cursor string
}

// pageOf recognizes a paginated envelope: an object carrying an item list
// under a conventional field name, or a bare item array accompanied by a
// cursor. Kubernetes-style envelopes keep the cursor under metadata.
func pageOf(value any) (page, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return page{}, false
	}

	var items []any
	found := false
	for _, field := range itemFields {
		if raw, ok := obj[field]; ok {
			if seq, ok := raw.([]any); ok {
				items = seq
				found = true
				break
			}
		}
	}
	if !found {
		return page{}, false
	}

	return page{items: items, cursor: cursorOf(obj)}, true
}

func cursorOf(obj map[string]any) string {
	for _, field := range cursorFields {
		if s, ok := obj[field].(string); ok && s != "" {
			return s
		}
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		if s, ok := meta["continue"].(string); ok {
			return s
		}
	}
	return ""
}

// cursorParamFor finds the request parameter the follow-up cursor is passed
// through, by conventional name.
func cursorParamFor(d *catalog.Descriptor) (string, bool) {
	for _, name := range cursorParams {
		if _, ok := d.Param(name); ok {
			return name, true
		}
	}
	return "", false
}

// numberedParamFor finds a page-number or offset request parameter.
func numberedParamFor(d *catalog.Descriptor) (name string, byOffset bool, ok bool) {
	for _, n := range pageParams {
		if _, found := d.Param(n); found {
			return n, false, true
		}
	}
	for _, n := range offsetParams {
		if _, found := d.Param(n); found {
			return n, true, true
		}
	}
	return "", false, false
}

// itemsOf extracts the item list from a follow-up numbered page, which may be
// a bare array or the same envelope shape as the first page.
func itemsOf(value any) []any {
	if seq, ok := value.([]any); ok {
		return seq
	}
	if p, ok := pageOf(value); ok {
		return p.items
	}
	return nil
}

func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func seedIdentities(items []any) map[string]bool {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if key, ok := identityOf(item); ok {
			seen[key] = true
		}
	}
	return seen
}

func appendUnique(items, more []any, seen map[string]bool) []any {
	for _, item := range more {
		key, ok := identityOf(item)
		if ok {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		items = append(items, item)
	}
	return items
}

// identityOf derives a dedup key from conventional identity fields. Items
// without one are never deduplicated.
func identityOf(item any) (string, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	for _, field := range identityFields {
		if s, ok := obj[field].(string); ok && s != "" {
			return field + ":" + s, true
		}
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		uid, _ := meta["uid"].(string)
		if uid != "" {
			return "uid:" + uid, true
		}
		name, _ := meta["name"].(string)
		if name != "" {
			return "name:" + fmt.Sprintf("%v/%s", obj["kind"], name), true
		}
	}
	return "", false
}

// normalize strips Go types from a value through a JSON round trip, so every
// result crossing the wire is plain maps, slices and scalars.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	return out
}
