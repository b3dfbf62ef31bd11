// Package fetcher provides the HTTP client for the 11st product open API.
//
// The API returns EUC-KR encoded XML; prices arrive as display strings like
// "1,234원". Rate limiting is handled via a token bucket limiter so a full
// polling cycle cannot exceed the shop's request quota.
package fetcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// saleStatusOnSale is the status text 11st reports for purchasable products.
const saleStatusOnSale = "판매중"

// Product is the product data the engine needs from one fetch.
type Product struct {
	Code      string
	Name      string
	Price     int
	IsSoldOut bool
	ImageURL  string
}

// Client is a rate-limited 11st open API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an 11st client with rate limiting.
func NewClient(baseURL, apiKey string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// productInfoResponse mirrors the ProductInfoResponse XML document.
type productInfoResponse struct {
	Product struct {
		ProductCode  string `xml:"ProductCode"`
		ProductName  string `xml:"ProductName"`
		ProductPrice struct {
			LowestPrice string `xml:"LowestPrice"`
		} `xml:"ProductPrice"`
		BasicImage string `xml:"BasicImage"`
		SaleStatus string `xml:"SaleStatus"`
	} `xml:"Product"`
}

// Fetch retrieves the current product data for a product code. All failure
// modes (network, non-200, parse) are equivalent to the caller: the product
// is skipped for this cycle and retried on the next.
func (c *Client) Fetch(ctx context.Context, productCode string) (Product, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Product{}, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("productCode", productCode)
	u := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Product{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("fetch product %s: %w", productCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return Product{}, fmt.Errorf("11st returned %d for %s: %s", resp.StatusCode, productCode, string(body))
	}

	info, err := decodeProductInfo(resp.Body)
	if err != nil {
		return Product{}, fmt.Errorf("decode product %s: %w", productCode, err)
	}
	return info, nil
}

// decodeProductInfo parses the EUC-KR XML body into a Product.
func decodeProductInfo(r io.Reader) (Product, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var doc productInfoResponse
	if err := dec.Decode(&doc); err != nil {
		return Product{}, fmt.Errorf("parse xml: %w", err)
	}

	p := doc.Product
	if p.ProductCode == "" {
		return Product{}, fmt.Errorf("response has no product")
	}

	price, err := parsePrice(p.ProductPrice.LowestPrice)
	if err != nil {
		return Product{}, err
	}

	return Product{
		Code:      p.ProductCode,
		Name:      p.ProductName,
		Price:     price,
		IsSoldOut: p.SaleStatus != "" && p.SaleStatus != saleStatusOnSale,
		ImageURL:  p.BasicImage,
	}, nil
}

// charsetReader decodes the EUC-KR payloads 11st serves.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "euc-kr", "ks_c_5601-1987", "cp949":
		return transform.NewReader(input, korean.EUCKR.NewDecoder()), nil
	case "utf-8", "":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}

// parsePrice normalizes a display price like "1,234원" to an integer.
func parsePrice(s string) (int, error) {
	cleaned := strings.NewReplacer("원", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("empty price")
	}
	price, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if price < 0 {
		return 0, fmt.Errorf("negative price %d", price)
	}
	return price, nil
}
