package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/gocolly/colly/v2"
	"github.com/jaytaylor/html2text"
	"github.com/muesli/reflow/wordwrap"

	"github.com/b3ngr33n/docuchat-go/internal/logging"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// crawledPage is one successfully fetched and converted page.
type crawledPage struct {
	// url is the final URL of the page.
	url string
	// text is the converted, word-wrapped plain text.
	text string
}

// normalizeWebsite crawls from the root URL up to the configured depth,
// converts each fetched page to plain text (tables rendered, fixed-width
// wrapped), and chunks each page with the web-path parameters.
//
// Depth follows the crawler's convention: depth 1 admits only the root
// page; links discovered there sit at depth 2 and are not visited.
// Unreachable or malformed pages are skipped and logged — only a root that
// yields nothing at all fails the normalization.
func (n *Normalizer) normalizeWebsite(ctx context.Context, src Website) ([]rag.Segment, error) {
	root, err := url.Parse(src.URL)
	if err != nil || root.Hostname() == "" {
		return nil, fmt.Errorf("source: invalid website link %q", src.URL)
	}

	log := logging.FromContext(ctx)

	c := colly.NewCollector(
		colly.MaxDepth(n.cfg.MaxDepth),
		colly.UserAgent(n.cfg.UserAgent),
		colly.AllowedDomains(root.Hostname()),
	)
	c.SetRequestTimeout(n.cfg.FetchTimeout)

	var pages []crawledPage

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		// Depth and domain limits are enforced by the collector; a rejected
		// link is not an error worth surfacing.
		_ = e.Request.Visit(e.Attr("href"))
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := strings.ToLower(r.Headers.Get("Content-Type"))
		if !strings.Contains(contentType, "text/html") && contentType != "" {
			return
		}

		text, err := html2text.FromString(string(r.Body), html2text.Options{PrettyTables: true})
		if err != nil {
			log.Warn("crawl: skipping malformed page",
				slog.String("url", r.Request.URL.String()),
				slog.Any("error", err),
			)
			return
		}
		text = strings.TrimSpace(wordwrap.String(text, n.cfg.WrapWidth))
		if text == "" {
			return
		}

		pages = append(pages, crawledPage{url: r.Request.URL.String(), text: text})
	})

	c.OnError(func(r *colly.Response, err error) {
		log.Warn("crawl: skipping unreachable page",
			slog.String("url", r.Request.URL.String()),
			slog.Any("error", err),
		)
	})

	visitErr := c.Visit(root.String())
	c.Wait()

	if len(pages) == 0 {
		if visitErr != nil {
			return nil, fmt.Errorf("source: crawl of %s failed: %w", root, visitErr)
		}
		return nil, fmt.Errorf("source: crawl of %s produced no content", root)
	}

	// Each page is chunked independently so every segment keeps its page URL.
	var segments []rag.Segment
	for _, page := range pages {
		for i, chunk := range n.cfg.WebChunker.Split(page.text) {
			segments = append(segments, rag.Segment{
				Text: chunk,
				Metadata: map[string]string{
					MetaSourceType: "web",
					MetaSource:     page.url,
					MetaChunkIndex: strconv.Itoa(i),
				},
			})
		}
	}
	return segments, nil
}
