// Package disclosure reads corporate filings from the DART OpenAPI of the
// Korean Financial Supervisory Service.
package disclosure

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/ESGLens/internal/httputil"
)

// DefaultBaseURL is the public DART OpenAPI endpoint.
const DefaultBaseURL = "https://opendart.fss.or.kr/api"

// Client calls the DART OpenAPI.
type Client struct {
	BaseURL string
	APIKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a DART client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "disclosure"),
	}
}

// IsConfigured checks that an API key is set.
func (c *Client) IsConfigured() bool {
	return c.APIKey != ""
}

// Corp is one entry of the DART corporation code list.
type Corp struct {
	CorpCode   string `xml:"corp_code"`
	Name       string `xml:"corp_name"`
	StockCode  string `xml:"stock_code"`
	ModifyDate string `xml:"modify_date"`
}

// Listed reports whether the corporation has a stock code.
func (c Corp) Listed() bool {
	return strings.TrimSpace(c.StockCode) != ""
}

// CorpCodes downloads the full corporation code list (a zipped XML file).
func (c *Client) CorpCodes(ctx context.Context) ([]Corp, error) {
	body, err := c.get(ctx, "corpCode.xml", nil)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		// Errors come back as a plain XML status document instead of a zip.
		if apiErr := parseXMLStatus(body); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("opening corp code archive: %w", err)
	}

	for _, f := range zr.File {
		if !strings.EqualFold(f.Name, "CORPCODE.xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()

		var doc struct {
			List []Corp `xml:"list"`
		}
		if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f.Name, err)
		}
		for i := range doc.List {
			doc.List[i].StockCode = strings.TrimSpace(doc.List[i].StockCode)
		}
		return doc.List, nil
	}
	return nil, fmt.Errorf("CORPCODE.xml missing from archive")
}

// Account is one line of a single-company financial statement.
type Account struct {
	BusinessYear  string `json:"bsns_year"`
	ReportCode    string `json:"reprt_code"`
	StatementKind string `json:"sj_div"`
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account_nm"`
	Amount        string `json:"thstrm_amount"`
	Order         string `json:"ord"`
	Currency      string `json:"currency"`
}

// Accounts returns every account of one periodic report, consolidated
// statements (CFS) only.
func (c *Client) Accounts(ctx context.Context, corpCode string, year int, reportCode string) ([]Account, error) {
	params := url.Values{}
	params.Set("corp_code", corpCode)
	params.Set("bsns_year", fmt.Sprint(year))
	params.Set("reprt_code", reportCode)
	params.Set("fs_div", "CFS")

	body, err := c.get(ctx, "fnlttSinglAcntAll.json", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status  string    `json:"status"`
		Message string    `json:"message"`
		List    []Account `json:"list"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding accounts: %w", err)
	}
	if resp.Status != StatusOK {
		return nil, &APIError{Status: resp.Status, Message: resp.Message}
	}
	return resp.List, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("crtfc_key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("DART request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading DART response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DART returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}

func parseXMLStatus(body []byte) *APIError {
	var status struct {
		Status  string `xml:"status"`
		Message string `xml:"message"`
	}
	if err := xml.Unmarshal(body, &status); err != nil || status.Status == "" {
		return nil
	}
	return &APIError{Status: status.Status, Message: status.Message}
}
