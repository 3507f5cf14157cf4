package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// bigcommerceAttempts bounds the retry-on-5xx loop. The commerce API is
// a flaky network dependency, unlike the local stores which never get
// retried.
const bigcommerceAttempts = 3

// BigCommerce proxies a model to the BigCommerce catalog instead of
// local storage. Registered for the "products" model when credentials
// are configured.
type BigCommerce struct {
	// Overridable for tests
	BaseURL string

	hash   string
	token  string
	client *http.Client
}

func NewBigCommerce(hash, token string) *BigCommerce {
	return &BigCommerce{
		BaseURL: "https://api.bigcommerce.com",
		hash:    hash,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type bigcommerceProduct struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	DateModified string          `json:"date_modified"`
	Raw          json.RawMessage `json:"-"`
}

func (b *BigCommerce) fetch(ctx context.Context, method, endpoint string, queries url.Values, body any) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/stores/%s/%s", b.BaseURL, b.hash, endpoint)
	if len(queries) > 0 {
		u += "?" + queries.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	var lastStatus int

	for try := 0; try < bigcommerceAttempts; try++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Auth-Token", b.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}

		zap.L().Debug("BigCommerce request",
			zap.String("method", method),
			zap.String("url", u),
			zap.Int("status", resp.StatusCode),
		)

		lastStatus = resp.StatusCode

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("bigcommerce %s %s returned %d", method, endpoint, resp.StatusCode)
		}

		if resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			return nil, nil
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		// v3 responses wrap the payload in a data envelope
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != nil {
			return envelope.Data, nil
		}

		return raw, nil
	}

	return nil, fmt.Errorf("bigcommerce %s %s failed after %d attempts, last status %d", method, endpoint, bigcommerceAttempts, lastStatus)
}

func (b *BigCommerce) products(ctx context.Context, queries url.Values) ([]bigcommerceProduct, []json.RawMessage, error) {
	data, err := b.fetch(ctx, http.MethodGet, "v3/catalog/products", queries, nil)
	if err != nil {
		return nil, nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, err
	}

	products := make([]bigcommerceProduct, 0, len(raws))
	for _, raw := range raws {
		var p bigcommerceProduct
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, nil, err
		}
		p.Raw = raw
		products = append(products, p)
	}

	return products, raws, nil
}

func modifiedAt(dateModified string) int64 {
	t, err := time.Parse(time.RFC3339, dateModified)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// List maps the shared pagination contract onto the API's page numbers:
// the cursor is the next page to fetch
func (b *BigCommerce) List(ctx context.Context, p ListParams) (*ListResult, error) {
	page := 1
	if p.After != "" {
		parsed, err := strconv.Atoi(p.After)
		if err == nil && parsed > 0 {
			page = parsed
		}
	}

	queries := url.Values{}
	queries.Set("include_fields", "name,date_modified")
	queries.Set("limit", strconv.Itoa(p.Limit))
	queries.Set("page", strconv.Itoa(page))
	if p.Prefix != "" {
		queries.Set("keyword", p.Prefix)
	}

	products, _, err := b.products(ctx, queries)
	if err != nil {
		return nil, err
	}

	res := &ListResult{Entries: make([]Entry, 0, len(products))}

	for _, product := range products {
		res.Entries = append(res.Entries, Entry{
			Name:       product.Name,
			ModifiedAt: modifiedAt(product.DateModified),
		})
	}

	if len(products) == p.Limit {
		res.Last = strconv.Itoa(page + 1)
	}

	return res, nil
}

func (b *BigCommerce) byName(ctx context.Context, name, fields string) (*bigcommerceProduct, error) {
	queries := url.Values{}
	queries.Set("name", name)
	queries.Set("limit", "1")
	if fields != "" {
		queries.Set("include_fields", fields)
	}

	products, _, err := b.products(ctx, queries)
	if err != nil {
		return nil, err
	}

	if len(products) == 0 {
		return nil, ErrNotFound
	}

	return &products[0], nil
}

func (b *BigCommerce) Exists(ctx context.Context, k Key) (bool, error) {
	_, err := b.byName(ctx, k.Name, "id")
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (b *BigCommerce) Get(ctx context.Context, k Key) (*Item, error) {
	queries := url.Values{}
	queries.Set("name", k.Name)
	queries.Set("limit", "1")
	queries.Set("include", "custom_fields,images")

	products, raws, err := b.products(ctx, queries)
	if err != nil {
		return nil, err
	}

	if len(products) == 0 {
		return nil, ErrNotFound
	}

	return &Item{
		Value:      raws[0],
		ModifiedAt: modifiedAt(products[0].DateModified),
	}, nil
}

func (b *BigCommerce) Put(ctx context.Context, p PutParams) error {
	if p.Value == nil {
		return ErrMissingValue
	}

	var value map[string]any
	if err := json.Unmarshal(p.Value, &value); err != nil {
		return err
	}

	if p.Rename != "" {
		value["name"] = p.Rename
	}

	existing, err := b.byName(ctx, p.Name, "id")
	if err != nil && err != ErrNotFound {
		return err
	}

	if p.Rename != "" && err == ErrNotFound {
		return ErrRenameMissing
	}

	if existing != nil {
		_, err = b.fetch(ctx, http.MethodPut, fmt.Sprintf("v3/catalog/products/%d", existing.ID), nil, value)
		return err
	}

	_, err = b.fetch(ctx, http.MethodPost, "v3/catalog/products", nil, value)
	return err
}

func (b *BigCommerce) Delete(ctx context.Context, k Key) error {
	existing, err := b.byName(ctx, k.Name, "id")
	if err != nil {
		return err
	}

	_, err = b.fetch(ctx, http.MethodDelete, fmt.Sprintf("v3/catalog/products/%d", existing.ID), nil, nil)
	return err
}
