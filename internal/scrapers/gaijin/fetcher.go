// Package gaijin scrapes the War Thunder pack listing of the Gaijin store.
package gaijin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"packwatch/internal/catalog"
	"packwatch/internal/components/assert"
	"packwatch/internal/components/telemetry"
	"packwatch/internal/scrapers/flaresolverr"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseUrl = "https://store.gaijin.net/catalog.php"

const (
	report_fetcher_page       = "fetcher.page"
	report_fetcher_solver     = "fetcher.solver"
	report_fetcher_empty_page = "fetcher.empty-page"
	report_fetcher_entries    = "fetcher.entries"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	acceptHtml     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9"
)

// Solver loads a page through a challenge solving browser and returns its
// HTML along with the browser state that passed the challenge.
// *flaresolverr.Client implements it.
type Solver interface {
	Solve(ctx context.Context, target string) (flaresolverr.Solution, error)
}

type Options struct {
	// BaseUrl is the catalog endpoint, defaults to DefaultBaseUrl.
	BaseUrl string
	// Solver is optional, without it a blocked page fails the fetch.
	Solver Solver
	// PageTimeout bounds each page request, defaults to 30s.
	PageTimeout time.Duration
	// RequestsPerSecond limits a single fetch, defaults to 2.
	RequestsPerSecond float64
}

type Fetcher struct {
	baseUrl *url.URL
	solver  Solver
	timeout time.Duration
	rps     float64
	tel     telemetry.API
}

func NewFetcher(opts Options, tel telemetry.API) (*Fetcher, error) {
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.PageTimeout == 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("catalog url %q is not absolute", opts.BaseUrl)
	}

	return &Fetcher{
		baseUrl: baseUrl,
		solver:  opts.Solver,
		timeout: opts.PageTimeout,
		rps:     opts.RequestsPerSecond,
		tel:     telemetry.NewScopedAPI("gaijin_scraper", tel),
	}, nil
}

// newClient creates the http session of a single fetch, cookies set by one
// page (or by a solved challenge) carry over to the following pages.
func (f *Fetcher) newClient() (*resty.Client, error) {
	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetHeader("accept", acceptHtml)
	httpClient.SetHeader("accept-language", acceptLanguage)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(f.baseUrl.Hostname()))
	httpClient.SetTimeout(f.timeout)

	burst := max(int(f.rps), 1)
	rateLimiter := rate.NewLimiter(rate.Limit(f.rps), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, f.tel)

	return httpClient, nil
}

// PageUrl is the listing url of one result page for a facet signature,
// sorted by ascending price.
func (f *Fetcher) PageUrl(signature string, page int) string {
	u := *f.baseUrl
	query := u.Query()
	query.Set("category", "WarThunderPacks")
	query.Set("dir", "asc")
	query.Set("order", "price")
	query.Set("page", strconv.Itoa(page))
	query.Set("search", signature)
	query.Set("tag", "1")
	u.RawQuery = query.Encode()
	return u.String()
}

func (f *Fetcher) fetchPage(ctx context.Context, client *resty.Client, pageUrl string) (*goquery.Document, error) {
	res, err := client.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		f.tel.ReportBroken(report_fetcher_page, err, pageUrl)
		return nil, &FetchError{Cause: CauseNetwork, URL: pageUrl, Err: err}
	}

	body := res.Body()
	if !res.IsSuccess() {
		statusErr := fmt.Errorf("unexpected status %d", res.StatusCode())
		if f.solver == nil {
			f.tel.ReportWarning(report_fetcher_page, statusErr, pageUrl)
			return nil, &FetchError{Cause: CauseHttpStatus, URL: pageUrl, Err: statusErr}
		}

		f.tel.ReportDebug("falling back to challenge solver", pageUrl, res.StatusCode())
		solved, err := f.solver.Solve(ctx, pageUrl)
		if err != nil {
			cause := CauseSolverError
			if errors.Is(err, flaresolverr.ErrSolverTimeout) || errors.Is(err, context.DeadlineExceeded) {
				cause = CauseSolverTimeout
			}
			f.tel.ReportWarning(report_fetcher_solver, err, pageUrl)
			return nil, &FetchError{
				Cause: cause,
				URL:   pageUrl,
				Err:   fmt.Errorf("%v, solver: %w", statusErr, err),
			}
		}
		f.adoptSolution(client, pageUrl, solved)
		body = []byte(solved.Response)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		f.tel.ReportBroken(report_fetcher_page, fmt.Errorf("parse html: %w", err), pageUrl)
		return nil, &FetchError{Cause: CauseParse, URL: pageUrl, Err: err}
	}
	return doc, nil
}

// adoptSolution makes the following requests of the fetch present the
// solver's clearance cookies and user agent.
func (f *Fetcher) adoptSolution(client *resty.Client, pageUrl string, solution flaresolverr.Solution) {
	if solution.UserAgent != "" {
		client.SetHeader("user-agent", solution.UserAgent)
	}
	cookies := solution.HttpCookies()
	if len(cookies) == 0 {
		return
	}
	target, err := url.Parse(pageUrl)
	if err != nil {
		return
	}
	// scoped to the catalog host, the jar drops cookies whose domain does
	// not match it
	for _, cookie := range cookies {
		cookie.Domain = ""
	}
	client.GetClient().Jar.SetCookies(target, cookies)
	f.tel.ReportDebug("adopted solver session", pageUrl, len(cookies))
}

func (f *Fetcher) pageEntries(doc *goquery.Document, pageUrl string, page int) []catalog.Entry {
	entries := parseEntries(doc, f.baseUrl)
	if len(entries) == 0 {
		f.tel.ReportWarning(report_fetcher_empty_page, ParseWarning{URL: pageUrl, Page: page})
	}
	f.tel.ReportDebug("parsed page", page, len(entries))
	return entries
}

// Fetch returns every pack listed for the signature across all result pages,
// sorted by ascending price. Any failing page fails the whole fetch with a
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, signature string) ([]catalog.Entry, error) {
	client, err := f.newClient()
	if err != nil {
		return nil, &FetchError{Cause: CauseNetwork, URL: f.baseUrl.String(), Err: err}
	}

	firstUrl := f.PageUrl(signature, 1)
	doc, err := f.fetchPage(ctx, client, firstUrl)
	if err != nil {
		return nil, err
	}
	entries := f.pageEntries(doc, firstUrl, 1)

	pages := parsePager(doc)
	for _, page := range pages {
		pageUrl := f.PageUrl(signature, page)
		doc, err := f.fetchPage(ctx, client, pageUrl)
		if err != nil {
			return nil, err
		}
		entries = append(entries, f.pageEntries(doc, pageUrl, page)...)
	}

	sorted := catalog.SortByPrice(entries)
	f.tel.ReportCount(report_fetcher_entries, int64(len(sorted)))
	return sorted, nil
}
