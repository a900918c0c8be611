package service

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"floodguard-be/internal/pkg/logger"
	"floodguard-be/pkg/details"
	"floodguard-be/pkg/protocol"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	newsModule      = "NewsService"
	newsCachePrefix = "news:"
	maxSnippet      = 200
	searchAttempts  = 3
	rssRelevance    = 0.5

	defaultSnippet = "Read more about this flood control project."
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// newsDomains is the allow-list for web results: Philippine outlets,
// government sites and a few regional desks.
var newsDomains = []string{
	"rappler", "inquirer", "philstar", "gma", "abs-cbn", "manila",
	"philippine", "dpwh", "gov.ph", "news", "dw.com", "asia",
}

var errNoResults = errors.New("no matching results")

type INewsService interface {
	// Search never fails on upstream errors; it returns what it could find,
	// possibly nothing.
	Search(ctx context.Context, criteria details.NewsCriteria, limit int) ([]protocol.Article, error)
}

type NewsOptions struct {
	SearchURL string
	Feeds     []string
	CacheTTL  time.Duration
	Client    *http.Client
	// NewBackOff paces web search retries; defaults to 1s, 2s.
	NewBackOff func() backoff.BackOff
	Now        func() time.Time
}

type newsService struct {
	opts  NewsOptions
	cache *redis.Client
	log   logger.ILogger
}

// NewNewsService builds the news lookup. cache may be nil.
func NewNewsService(opts NewsOptions, cache *redis.Client, log logger.ILogger) INewsService {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.Multiplier = 2
			b.RandomizationFactor = 0
			b.MaxInterval = 4 * time.Second
			return b
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &newsService{opts: opts, cache: cache, log: log}
}

func (s *newsService) Search(ctx context.Context, criteria details.NewsCriteria, limit int) ([]protocol.Article, error) {
	if limit <= 0 {
		limit = 5
	}
	query := criteria.SearchText()
	key := cacheKey(query, limit)

	// 1. Cache
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	// 2. Web search, then RSS
	s.log.Info(newsModule, "Searching web for news", map[string]interface{}{"query": query})
	articles, err := s.webSearch(ctx, query, limit)
	if err != nil {
		if ctx.Err() != nil {
			return []protocol.Article{}, ctx.Err()
		}
		s.log.Warn(newsModule, "Web search failed, falling back to RSS feeds", map[string]interface{}{"error": err.Error()})
		articles = s.fetchFeeds(ctx, limit)
	}

	// 3. Remember non-empty answers
	if len(articles) > 0 {
		s.toCache(ctx, key, articles)
	}
	return articles, nil
}

func cacheKey(query string, limit int) string {
	return fmt.Sprintf("%s%x", newsCachePrefix, md5.Sum([]byte(fmt.Sprintf("%d|%s", limit, strings.ToLower(query)))))
}

func (s *newsService) fromCache(ctx context.Context, key string) ([]protocol.Article, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn(newsModule, "News cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	var articles []protocol.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, false
	}
	return articles, true
}

func (s *newsService) toCache(ctx context.Context, key string, articles []protocol.Article) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(articles)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.opts.CacheTTL).Err(); err != nil {
		s.log.Warn(newsModule, "News cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

// webSearch posts the query to the DuckDuckGo HTML endpoint, rotating the
// user agent per attempt. An empty answer counts as a failed attempt.
func (s *newsService) webSearch(ctx context.Context, query string, limit int) ([]protocol.Article, error) {
	attempt := 0
	op := func() ([]protocol.Article, error) {
		ua := userAgents[attempt%len(userAgents)]
		attempt++

		form := url.Values{"q": {query}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.SearchURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := s.opts.Client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
		}

		articles, err := parseSearchResults(resp.Body, limit, s.opts.Now())
		if err != nil {
			return nil, err
		}
		if len(articles) == 0 {
			return nil, errNoResults
		}
		return articles, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(s.opts.NewBackOff()),
		backoff.WithMaxTries(searchAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.log.Warn(newsModule, "Web search attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
				"retry":   wait.String(),
			})
		}),
	)
}

// parseSearchResults reads DuckDuckGo's HTML result list. Only the first
// limit results are considered; those outside the domain allow-list are
// skipped, and relevance decays with the original rank.
func parseSearchResults(r io.Reader, limit int, now time.Time) ([]protocol.Article, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse search html: %w", err)
	}

	var snippets []string
	doc.Find("a.result__snippet").Each(func(_ int, sel *goquery.Selection) {
		snippets = append(snippets, strings.Join(strings.Fields(sel.Text()), " "))
	})

	articles := []protocol.Article{}
	doc.Find("a.result__a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		href, _ := sel.Attr("href")
		link := resolveResultURL(href)
		if link == "" || !allowedNewsURL(link) {
			return true
		}

		snippet := defaultSnippet
		if i < len(snippets) && snippets[i] != "" {
			snippet = snippets[i]
		}
		score := 1.0 - float64(i)*0.15
		articles = append(articles, protocol.Article{
			Title:          strings.TrimSpace(sel.Text()),
			Snippet:        truncate(snippet, maxSnippet),
			Source:         sourceName(link),
			PublishedDate:  now.UTC().Format(time.RFC3339),
			URL:            link,
			RelevanceScore: &score,
		})
		return true
	})
	return articles, nil
}

// resolveResultURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func allowedNewsURL(link string) bool {
	lower := strings.ToLower(link)
	for _, d := range newsDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// sourceName turns https://www.rappler.com/... into "Rappler".
func sourceName(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return "Web"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	label, _, _ := strings.Cut(host, ".")
	return titleCaser.String(label)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// fetchFeeds scans the first limit entries of each feed for flood
// infrastructure stories until limit articles are found.
func (s *newsService) fetchFeeds(ctx context.Context, limit int) []protocol.Article {
	articles := []protocol.Article{}
	for _, feedURL := range s.opts.Feeds {
		doc, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			s.log.Warn(newsModule, "Error parsing feed", map[string]interface{}{"feed": feedURL, "error": err.Error()})
			continue
		}

		source := doc.Channel.Title
		if source == "" {
			source = "Unknown"
		}
		items := doc.Channel.Items
		if len(items) > limit {
			items = items[:limit]
		}
		for _, item := range items {
			summary := plainText(item.Description)
			if !relevantFeedItem(item.Title, summary) {
				continue
			}
			published := item.PubDate
			if published == "" {
				published = s.opts.Now().UTC().Format(time.RFC3339)
			}
			score := rssRelevance
			articles = append(articles, protocol.Article{
				Title:          strings.TrimSpace(item.Title),
				Snippet:        truncate(summary, maxSnippet),
				Source:         source,
				PublishedDate:  published,
				URL:            strings.TrimSpace(item.Link),
				RelevanceScore: &score,
			})
			if len(articles) >= limit {
				return articles
			}
		}
	}
	return articles
}

func (s *newsService) fetchFeed(ctx context.Context, feedURL string) (*rssDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgents[0])
	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func relevantFeedItem(title, summary string) bool {
	t, sm := strings.ToLower(title), strings.ToLower(summary)
	return strings.Contains(t, "flood") ||
		strings.Contains(sm, "flood") ||
		strings.Contains(title, "DPWH") ||
		strings.Contains(sm, "infrastructure")
}

// plainText strips markup from an RSS description.
func plainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
