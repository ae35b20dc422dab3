package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"harrisrecords/internal/common"
	"harrisrecords/internal/entity"
)

const (
	loginPath = "Registration/Login.aspx"
	homePath  = "Home.aspx"

	// The real-property search endpoint requires this opaque session token
	// in the query string; the site issues the same token to every
	// authenticated session.
	searchPath = "RP_R.aspx?ID=" +
		"PtRyJzbPPV9CWT5QJ8WvKDQ+gLwGxn+WYxPqQJ2yN2nrebuxSt+MLpgoiTw8390k/" +
		"FkLbEd+ePVrAgLk58t/pKToXIY6RA7Vlxcm4HNe0h+B44WcgPp55ZpkPH7n9pxaYn8HnDJN/" +
		"EGBWxPTWRvRlL5+zpHxYWmIh2BBJUy1a29u0hDndbUlo+Vr2ytEO6ki"
)

var defaultHeaders = map[string]string{
	"Accept":           "*/*",
	"Accept-Language":  "en-GB,en-US;q=0.9,en;q=0.8,fr;q=0.7",
	"Cache-Control":    "no-cache",
	"Connection":       "keep-alive",
	"Origin":           "https://www.cclerk.hctx.net",
	"Pragma":           "no-cache",
	"Referer":          "https://www.cclerk.hctx.net/applications/websearch/",
	"User-Agent":       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"X-Requested-With": "XMLHttpRequest",
}

// hidden ASP.NET state fields carried between page loads
var securityFields = []string{
	"__VIEWSTATE",
	"__VIEWSTATEGENERATOR",
	"__EVENTVALIDATION",
	"__VIEWSTATEENCRYPTED",
	"__LASTFOCUS",
	"__EVENTARGUMENT",
	"__EVENTTARGET",
}

// Client scrapes real-property records from the Harris County Clerk's
// WebSearch application. It maintains an authenticated cookie session and
// the ASP.NET view-state parameters the search form requires.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	password string
	security url.Values
	logger   *slog.Logger
}

func NewClient(cfg common.ScraperConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, common.NewAppError("SCRAPER_INIT_FAILED", "failed to create cookie jar", err)
	}
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
	}, nil
}

// Login authenticates against the clerk's site and caches the search form's
// security parameters. It must be called before ScrapeRecords.
func (c *Client) Login(ctx context.Context) error {
	start := time.Now()
	loginURL := c.baseURL + loginPath

	doc, err := c.getDocument(ctx, loginURL)
	if err != nil {
		return common.NewAppError("SCRAPER_LOGIN_FAILED", "failed to load login page", err)
	}

	form := hiddenInputs(doc, securityFields[:6])
	form.Set("ctl00$ContentPlaceHolder1$Login1$UserName", c.username)
	form.Set("ctl00$ContentPlaceHolder1$Login1$Password", c.password)
	form.Set("ctl00$ContentPlaceHolder1$Login1$LoginButton", "Log In")

	resp, err := c.postForm(ctx, loginURL, form)
	if err != nil {
		return common.NewAppError("SCRAPER_LOGIN_FAILED", "login request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// A successful login redirects to the WebSearch home page.
	final := resp.Request.URL.Path
	if !strings.HasSuffix(final, "/Applications/WebSearch/"+homePath) {
		c.logger.Error("scraper.login.failed", "final_url", resp.Request.URL.String())
		return common.NewAppError("SCRAPER_LOGIN_FAILED",
			"login rejected, check HCTX_USERNAME and HCTX_PASSWORD", common.ErrUnauthorized)
	}

	if err := c.refreshSecurityParams(ctx); err != nil {
		return err
	}
	c.logger.Info("scraper.login.ok", "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// refreshSecurityParams loads the search page and captures the hidden
// ASP.NET state inputs the search POST must echo back.
func (c *Client) refreshSecurityParams(ctx context.Context) error {
	resp, err := c.postForm(ctx, c.baseURL+searchPath, url.Values{})
	if err != nil {
		return common.NewAppError("SCRAPER_INIT_FAILED", "failed to load search page", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return common.NewAppError("SCRAPER_INIT_FAILED", "failed to parse search page", err)
	}
	c.security = hiddenInputs(doc, securityFields)
	return nil
}

// ScrapeRecords searches for records of the given instrument type code
// recorded within [startDate, endDate] (MM/DD/YYYY) and returns the parsed
// result rows. Rows that fail to parse are skipped, not fatal.
func (c *Client) ScrapeRecords(ctx context.Context, instrumentType, startDate, endDate string) ([]entity.InputRecord, error) {
	start := time.Now()
	if c.security == nil {
		return nil, common.NewAppError("SCRAPER_NOT_READY", "Login must be called before ScrapeRecords", common.ErrInternal)
	}
	if err := validateDate(startDate); err != nil {
		return nil, err
	}
	if err := validateDate(endDate); err != nil {
		return nil, err
	}

	c.logger.Info("scraper.search.start",
		"instrument_type", instrumentType,
		"start_date", startDate,
		"end_date", endDate,
	)

	form := c.searchForm(instrumentType, startDate, endDate)
	resp, err := c.postForm(ctx, c.baseURL+searchPath, form)
	if err != nil {
		return nil, common.NewAppError("SCRAPER_SEARCH_FAILED", "search request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, common.NewAppError("SCRAPER_SEARCH_FAILED",
			fmt.Sprintf("search returned status %d", resp.StatusCode), common.ErrUnreachable)
	}

	records, err := ParseSearchResults(resp.Body, c.baseURL)
	if err != nil {
		return nil, err
	}

	c.logger.Info("scraper.search.ok",
		"instrument_type", instrumentType,
		"records", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

func (c *Client) searchForm(instrumentType, startDate, endDate string) url.Values {
	form := url.Values{}
	for key, vals := range c.security {
		for _, v := range vals {
			form.Add(key, v)
		}
	}
	form.Set("ctl00$ScriptManager1", "ctl00$ScriptManager1|ctl00$ContentPlaceHolder1$btnSearch")
	form.Set("ctl00$ContentPlaceHolder1$hfSearchType", "0")
	form.Set("ctl00$ContentPlaceHolder1$hfViewCopyOrders", "False")
	form.Set("ctl00$ContentPlaceHolder1$hfViewECart", "False")
	form.Set("ctl00$ContentPlaceHolder1$txtFN", "")
	form.Set("ctl00$ContentPlaceHolder1$txtFilmCd", "")
	form.Set("ctl00$ContentPlaceHolder1$txtDateN", startDate)
	form.Set("ctl00$ContentPlaceHolder1$txtDateTo", endDate)
	form.Set("ctl00$ContentPlaceHolder1$txtNameOR", "")
	form.Set("ctl00$ContentPlaceHolder1$txtNameEE", "")
	form.Set("ctl00$ContentPlaceHolder1$txtNameTee", "")
	form.Set("ctl00$ContentPlaceHolder1$txtDesc", "")
	form.Set("ctl00$ContentPlaceHolder1$txtType", instrumentType)
	form.Set("ctl00$ContentPlaceHolder1$txtVolNo", "")
	form.Set("ctl00$ContentPlaceHolder1$txtPageNo", "")
	form.Set("ctl00$ContentPlaceHolder1$txtSection", "")
	form.Set("ctl00$ContentPlaceHolder1$txtLot", "")
	form.Set("ctl00$ContentPlaceHolder1$txtBlock", "")
	form.Set("ctl00$ContentPlaceHolder1$txtUnit", "")
	form.Set("ctl00$ContentPlaceHolder1$txtAbstract", "")
	form.Set("ctl00$ContentPlaceHolder1$txtOutLot", "")
	form.Set("ctl00$ContentPlaceHolder1$txtTract", "")
	form.Set("ctl00$ContentPlaceHolder1$txtReserve", "")
	form.Set("ctl00$ContentPlaceHolder1$btnSearch", "Search")
	return form
}

func (c *Client) getDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	applyHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	applyHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return c.http.Do(req)
}

func applyHeaders(req *http.Request) {
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
}

func hiddenInputs(doc *goquery.Document, names []string) url.Values {
	vals := url.Values{}
	for _, name := range names {
		v, _ := doc.Find("input#" + name).Attr("value")
		vals.Set(name, v)
	}
	return vals
}

func validateDate(s string) error {
	if _, err := time.Parse("01/02/2006", s); err != nil {
		return common.NewAppError("SCRAPER_BAD_DATE",
			fmt.Sprintf("date %q must be MM/DD/YYYY", s), common.ErrInvalidInput)
	}
	return nil
}
