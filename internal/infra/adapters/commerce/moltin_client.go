package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-shop-bot/internal/config"
	"telegram-shop-bot/internal/domain"
	"telegram-shop-bot/internal/domain/model"
	"telegram-shop-bot/internal/domain/ports/adapter"
	"telegram-shop-bot/internal/infra/metrics"
)

var _ adapter.CommerceClient = (*MoltinClient)(nil)

// MoltinClient talks to the Moltin (Elastic Path) commerce API: client
// credentials grant, entity attributes under a {data: ...} envelope.
//
// The bearer token is the only shared mutable state; the check-then-refresh
// is guarded by a mutex, so concurrent turns never trigger duplicate grants.
type MoltinClient struct {
	baseURL          string
	clientID         string
	clientSecret     string
	priceBookID      string
	customerPassword string
	client           *http.Client
	log              *zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewMoltinClient(cfg *config.MoltinConfig, log *zerolog.Logger) *MoltinClient {
	return &MoltinClient{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		clientID:         cfg.ClientID,
		clientSecret:     cfg.ClientSecret,
		priceBookID:      cfg.PriceBookID,
		customerPassword: cfg.CustomerPassword,
		client:           &http.Client{Timeout: cfg.Timeout},
		log:              log,
		now:              time.Now,
	}
}

// bearer returns a valid access token, refreshing it only once expired.
func (m *MoltinClient) bearer(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	form := url.Values{
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token grant: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream("authenticate", resp.StatusCode)
	if resp.StatusCode/100 != 2 {
		return "", upstreamErr("authenticate", resp)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		Expires     int64  `json:"expires"` // unix seconds
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("token grant: decode: %w", err)
	}
	m.token = out.AccessToken
	m.tokenExpiry = time.Unix(out.Expires, 0)
	m.log.Debug().Time("expires", m.tokenExpiry).Msg("commerce token refreshed")
	return m.token, nil
}

// do performs one authenticated JSON request and decodes the answer into out
// (out may be nil when the body does not matter).
func (m *MoltinClient) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	token, err := m.bearer(ctx)
	if err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(op, resp.StatusCode)
	if resp.StatusCode/100 != 2 {
		return upstreamErr(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func upstreamErr(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &domain.UpstreamError{Op: op, Status: resp.StatusCode, Body: string(b)}
}

func (m *MoltinClient) ListProducts(ctx context.Context) ([]model.ProductRef, error) {
	var out struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := m.do(ctx, "list_products", http.MethodGet, "/pcm/products", nil, &out); err != nil {
		return nil, err
	}
	refs := make([]model.ProductRef, 0, len(out.Data))
	for _, p := range out.Data {
		refs = append(refs, model.ProductRef{ID: p.ID, Name: p.Attributes.Name})
	}
	return refs, nil
}

func (m *MoltinClient) GetProduct(ctx context.Context, productID string) (*model.ProductDetail, error) {
	var out struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				SKU         string `json:"sku"`
			} `json:"attributes"`
			Relationships struct {
				MainImage struct {
					Links struct {
						Self string `json:"self"`
					} `json:"links"`
				} `json:"main_image"`
			} `json:"relationships"`
		} `json:"data"`
	}
	if err := m.do(ctx, "get_product", http.MethodGet, "/pcm/products/"+productID, nil, &out); err != nil {
		return nil, err
	}
	return &model.ProductDetail{
		ID:            out.Data.ID,
		Name:          out.Data.Attributes.Name,
		Description:   out.Data.Attributes.Description,
		SKU:           out.Data.Attributes.SKU,
		MainImagePath: out.Data.Relationships.MainImage.Links.Self,
	}, nil
}

func (m *MoltinClient) GetPriceBook(ctx context.Context) ([]model.PriceEntry, error) {
	var out struct {
		Included []struct {
			Attributes struct {
				SKU        string `json:"sku"`
				Currencies map[string]struct {
					Amount int `json:"amount"`
				} `json:"currencies"`
			} `json:"attributes"`
		} `json:"included"`
	}
	path := "/pcm/pricebooks/" + m.priceBookID + "?include=prices"
	if err := m.do(ctx, "get_price_book", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	entries := make([]model.PriceEntry, 0, len(out.Included))
	for _, p := range out.Included {
		entries = append(entries, model.PriceEntry{
			SKU:      p.Attributes.SKU,
			USDCents: p.Attributes.Currencies["USD"].Amount,
		})
	}
	return entries, nil
}

// GetImageURL resolves a relative main_image relationship link to the actual
// file URL: the relationship answers with a file id, the files endpoint with
// the link.
func (m *MoltinClient) GetImageURL(ctx context.Context, relPath string) (string, error) {
	var rel struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := m.do(ctx, "get_image_id", http.MethodGet, "/pcm"+relPath, nil, &rel); err != nil {
		return "", err
	}

	var file struct {
		Data struct {
			Link struct {
				Href string `json:"href"`
			} `json:"link"`
		} `json:"data"`
	}
	if err := m.do(ctx, "get_image_url", http.MethodGet, "/v2/files/"+rel.Data.ID, nil, &file); err != nil {
		return "", err
	}
	return file.Data.Link.Href, nil
}

func (m *MoltinClient) GetStock(ctx context.Context, productID string) (int, error) {
	var out struct {
		Data struct {
			Available int `json:"available"`
		} `json:"data"`
	}
	if err := m.do(ctx, "get_stock", http.MethodGet, "/v2/inventories/"+productID, nil, &out); err != nil {
		return 0, err
	}
	return out.Data.Available, nil
}

func (m *MoltinClient) AddToCart(ctx context.Context, cartID, productID string, quantity int) error {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}
	return m.do(ctx, "add_to_cart", http.MethodPost, "/v2/carts/"+cartID+"/items", payload, nil)
}

func (m *MoltinClient) GetCartAndTotal(ctx context.Context, cartID string) ([]model.CartLine, string, error) {
	type displayPrice struct {
		WithTax struct {
			Unit struct {
				Formatted string `json:"formatted"`
			} `json:"unit"`
			Value struct {
				Formatted string `json:"formatted"`
			} `json:"value"`
		} `json:"with_tax"`
	}
	var out struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Quantity    int    `json:"quantity"`
			Meta        struct {
				DisplayPrice displayPrice `json:"display_price"`
			} `json:"meta"`
		} `json:"data"`
		Meta struct {
			DisplayPrice struct {
				WithTax struct {
					Formatted string `json:"formatted"`
				} `json:"with_tax"`
			} `json:"display_price"`
		} `json:"meta"`
	}
	if err := m.do(ctx, "get_cart", http.MethodGet, "/v2/carts/"+cartID+"/items", nil, &out); err != nil {
		return nil, "", err
	}
	lines := make([]model.CartLine, 0, len(out.Data))
	for _, it := range out.Data {
		lines = append(lines, model.CartLine{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.Meta.DisplayPrice.WithTax.Unit.Formatted,
			LineTotal:   it.Meta.DisplayPrice.WithTax.Value.Formatted,
		})
	}
	return lines, out.Meta.DisplayPrice.WithTax.Formatted, nil
}

func (m *MoltinClient) RemoveFromCart(ctx context.Context, cartID, itemID string) error {
	return m.do(ctx, "remove_from_cart", http.MethodDelete, "/v2/carts/"+cartID+"/items/"+itemID, nil, nil)
}

func (m *MoltinClient) CreateCustomer(ctx context.Context, email string) error {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"type":     "customer",
			"name":     "Покупатель",
			"email":    email,
			"password": m.customerPassword,
		},
	}
	return m.do(ctx, "create_customer", http.MethodPost, "/v2/customers", payload, nil)
}
