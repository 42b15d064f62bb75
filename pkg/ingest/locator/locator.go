package locator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest/fetch"
)

// MaxPageBytes caps the size of an index page.
const MaxPageBytes = 16 << 20

// Extensions are the downloadable file types considered on index pages.
var Extensions = []string{".zip", ".xlsx", ".xls", ".csv", ".txt"}

// Candidate is a ranked download link found on an index page.
type Candidate struct {
	URL   string    `json:"url"`
	Text  string    `json:"text"`
	Score int       `json:"score"`
	Date  time.Time `json:"date,omitempty"`
	Order int       `json:"order"`
}

type keywordSet struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

var keywords = map[edits.Kind]keywordSet{
	edits.KindPTP: {
		include: regexp.MustCompile(`ptp|procedure[- ]to[- ]procedure|ncci[- ]edits?|cci[- ]?pra`),
		exclude: regexp.MustCompile(`mue|medically[- ]unlikely|add[- ]?on`),
	},
	edits.KindMUE: {
		include: regexp.MustCompile(`mue|medically[- ]unlikely`),
	},
	edits.KindAOC: {
		include: regexp.MustCompile(`add[- ]?on|aoc`),
	},
}

// Matches reports whether a link's combined href and text belong to kind.
func Matches(kind edits.Kind, hrefAndText string) bool {
	ks, ok := keywords[kind]
	if !ok {
		return false
	}
	s := normalizeForMatch(hrefAndText)
	if !ks.include.MatchString(s) {
		return false
	}
	return ks.exclude == nil || !ks.exclude.MatchString(s)
}

func normalizeForMatch(s string) string {
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	s = strings.ToLower(s)
	return strings.NewReplacer("_", " ", "+", " ").Replace(s)
}

// Locator finds the newest distribution of an edit kind on a publisher
// index page.
type Locator struct {
	client *fetch.Client
	scorer DateScorer
	logger *slog.Logger
}

// New creates a Locator. A nil scorer uses CascadeScorer.
func New(client *fetch.Client, scorer DateScorer) *Locator {
	if scorer == nil {
		scorer = CascadeScorer{}
	}
	return &Locator{
		client: client,
		scorer: scorer,
		logger: slog.Default().With("component", "locator"),
	}
}

// Locate returns the best-ranked candidate for kind on the index page.
func (l *Locator) Locate(ctx context.Context, indexURL string, kind edits.Kind) (Candidate, error) {
	cands, err := l.LocateAll(ctx, indexURL, kind)
	if err != nil {
		return Candidate{}, err
	}
	return cands[0], nil
}

// LocateAll returns every candidate for kind in ranked order. It fails
// with edits.ErrSourceNotFound when no link qualifies.
func (l *Locator) LocateAll(ctx context.Context, indexURL string, kind edits.Kind) ([]Candidate, error) {
	page, err := l.client.GetBytes(ctx, indexURL, MaxPageBytes)
	if err != nil {
		return nil, edits.NewBuildError(kind, edits.StageLocate,
			fmt.Errorf("%w: index page %s: %w", edits.ErrDownloadFailed, indexURL, err))
	}

	cands, err := l.Parse(page, indexURL, kind)
	if err != nil {
		return nil, edits.NewBuildError(kind, edits.StageLocate, err)
	}

	l.logger.InfoContext(ctx, "located distribution",
		"kind", kind,
		"index_url", indexURL,
		"candidates", len(cands),
		"url", cands[0].URL,
		"score", cands[0].Score,
	)
	return cands, nil
}

// Parse extracts and ranks candidates for kind from index page markup.
// Relative hrefs are resolved against indexURL.
func (l *Locator) Parse(page []byte, indexURL string, kind edits.Kind) ([]Candidate, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index URL %q: %w", indexURL, err)
	}

	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing index page: %w", err)
	}

	var cands []Candidate
	seen := make(map[string]bool)
	order := 0

	for _, a := range anchors(doc) {
		resolved, err := base.Parse(strings.TrimSpace(a.href))
		if err != nil {
			continue
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		if !hasExtension(resolved.Path) {
			continue
		}
		combined := a.href + " " + a.text
		if !Matches(kind, combined) {
			continue
		}

		abs := resolved.String()
		if seen[abs] {
			continue
		}
		seen[abs] = true

		score, date := l.scorer.Score(normalizeForScore(combined))
		cands = append(cands, Candidate{
			URL:   abs,
			Text:  a.text,
			Score: score,
			Date:  date,
			Order: order,
		})
		order++
	}

	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: no %s download link on %s", edits.ErrSourceNotFound, kind.Title(), indexURL)
	}

	Rank(cands)
	return cands, nil
}

func normalizeForScore(s string) string {
	if unescaped, err := url.PathUnescape(s); err == nil {
		return unescaped
	}
	return s
}

// Rank orders candidates by score, then date, both descending, then by
// document order.
func Rank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Order < b.Order
	})
}

// Siblings returns the ranked candidates tied with the first on score and
// date. Large releases are split across several files that share a date.
func Siblings(cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return nil
	}
	best := cands[0]
	out := []Candidate{best}
	for _, c := range cands[1:] {
		if c.Score == best.Score && c.Date.Equal(best.Date) {
			out = append(out, c)
		}
	}
	return out
}

func hasExtension(p string) bool {
	p = strings.ToLower(p)
	for _, ext := range Extensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

type anchor struct {
	href string
	text string
}

// anchors returns every <a href> in document order with its visible text.
func anchors(n *html.Node) []anchor {
	var out []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if strings.EqualFold(attr.Key, "href") && attr.Val != "" {
					out = append(out, anchor{href: attr.Val, text: textContent(n)})
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
