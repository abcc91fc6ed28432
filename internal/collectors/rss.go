package collectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/mwiater/sieve/internal/util"
)

// RSS collects items from an RSS or Atom feed.
type RSS struct {
	Client *http.Client
}

// ID implements Collector.
func (r *RSS) ID() string { return "rss" }

// Collect fetches the feed at locator. Option "limit" caps the item count.
func (r *RSS) Collect(ctx context.Context, locator string, opts map[string]any) (Batch, error) {
	resp, err := fetch(ctx, r.Client, locator)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", locator, err)
	}

	limit := util.IntOption(opts, "limit", 0)
	out := make(Batch, 0, len(feed.Items))
	for _, it := range feed.Items {
		if limit > 0 && len(out) >= limit {
			break
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		item := Item{
			"title":  title,
			"link":   strings.TrimSpace(it.Link),
			"source": strings.TrimSpace(feed.Title),
		}
		desc := it.Description
		if strings.TrimSpace(desc) == "" {
			desc = it.Content
		}
		if text := htmlText(desc); text != "" {
			item["description"] = text
		}
		if it.GUID != "" {
			item["guid"] = it.GUID
		}
		if it.PublishedParsed != nil {
			item["published"] = it.PublishedParsed.UTC().Format(time.RFC3339)
		} else if it.UpdatedParsed != nil {
			item["published"] = it.UpdatedParsed.UTC().Format(time.RFC3339)
		}
		if len(it.Categories) > 0 {
			cats := make([]any, 0, len(it.Categories))
			for _, c := range it.Categories {
				cats = append(cats, c)
			}
			item["categories"] = cats
		}
		out = append(out, item)
	}
	return out, nil
}

// htmlText flattens an HTML fragment to its visible text.
func htmlText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script,style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
