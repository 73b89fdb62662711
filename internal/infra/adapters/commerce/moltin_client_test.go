package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-shop-bot/internal/config"
	"telegram-shop-bot/internal/domain"
)

type moltinStub struct {
	grants     int
	lastAuth   string
	tokenTTL   int64
	handlers   map[string]http.HandlerFunc
	lastBodies map[string]string
}

func newMoltinStub() *moltinStub {
	return &moltinStub{
		tokenTTL:   3600,
		handlers:   map[string]http.HandlerFunc{},
		lastBodies: map[string]string{},
	}
}

func (s *moltinStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth/access_token" {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		s.grants++
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires":%d}`, s.grants, time.Now().Unix()+s.tokenTTL)
		return
	}
	s.lastAuth = r.Header.Get("Authorization")
	key := r.Method + " " + r.URL.Path
	b, _ := io.ReadAll(r.Body)
	s.lastBodies[key] = string(b)
	if h, ok := s.handlers[key]; ok {
		h(w, r)
		return
	}
	http.NotFound(w, r)
}

func newTestClient(t *testing.T, stub *moltinStub) (*MoltinClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	logger := zerolog.Nop()
	cfg := &config.MoltinConfig{
		BaseURL:          srv.URL,
		ClientID:         "cid",
		ClientSecret:     "secret",
		PriceBookID:      "pb1",
		CustomerPassword: "pw",
		Timeout:          5 * time.Second,
	}
	return NewMoltinClient(cfg, &logger), srv
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["GET /pcm/products"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}
	client, _ := newTestClient(t, stub)

	now := time.Now()
	client.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.ListProducts(ctx); err != nil {
			t.Fatalf("ListProducts: %v", err)
		}
	}
	if stub.grants != 1 {
		t.Fatalf("grants = %d, want 1 while the token is valid", stub.grants)
	}
	if stub.lastAuth != "Bearer tok-1" {
		t.Fatalf("auth header = %q", stub.lastAuth)
	}

	// Jump past the expiry instant; the very next call must re-authenticate.
	now = now.Add(time.Duration(stub.tokenTTL)*time.Second + time.Second)
	if _, err := client.ListProducts(ctx); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if stub.grants != 2 {
		t.Fatalf("grants = %d, want 2 after expiry", stub.grants)
	}
	if stub.lastAuth != "Bearer tok-2" {
		t.Fatalf("auth header = %q", stub.lastAuth)
	}
}

func TestListProductsKeepsCatalogOrder(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["GET /pcm/products"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"p1","attributes":{"name":"Окунь"}},
			{"id":"p2","attributes":{"name":"Судак"}},
			{"id":"p3","attributes":{"name":"Щука"}}
		]}`)
	}
	client, _ := newTestClient(t, stub)

	refs, err := client.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(refs) != 3 || refs[0].ID != "p1" || refs[2].Name != "Щука" {
		t.Fatalf("refs = %+v", refs)
	}
}

func TestGetProductParsesEnvelope(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["GET /pcm/products/p123"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{
			"id":"p123",
			"attributes":{"name":"Окунь","description":"Свежий","sku":"SKU1"},
			"relationships":{"main_image":{"links":{"self":"/catalog/products/p123/relationships/main_image"}}}
		}}`)
	}
	client, _ := newTestClient(t, stub)

	p, err := client.GetProduct(context.Background(), "p123")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.SKU != "SKU1" || p.Name != "Окунь" {
		t.Fatalf("product = %+v", p)
	}
	if p.MainImagePath != "/catalog/products/p123/relationships/main_image" {
		t.Fatalf("image path = %q", p.MainImagePath)
	}
}

func TestGetPriceBook(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["GET /pcm/pricebooks/pb1"] = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include") != "prices" {
			http.Error(w, "missing include", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"data":{},"included":[
			{"attributes":{"sku":"SKU1","currencies":{"USD":{"amount":250}}}},
			{"attributes":{"sku":"SKU2","currencies":{"USD":{"amount":999}}}}
		]}`)
	}
	client, _ := newTestClient(t, stub)

	entries, err := client.GetPriceBook(context.Background())
	if err != nil {
		t.Fatalf("GetPriceBook: %v", err)
	}
	if len(entries) != 2 || entries[0].SKU != "SKU1" || entries[0].USDCents != 250 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestGetImageURLTwoStepResolution(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["GET /pcm/catalog/products/p123/relationships/main_image"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"file-9"}}`)
	}
	stub.handlers["GET /v2/files/file-9"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"link":{"href":"https://files.example.com/fish.png"}}}`)
	}
	client, _ := newTestClient(t, stub)

	url, err := client.GetImageURL(context.Background(), "/catalog/products/p123/relationships/main_image")
	if err != nil {
		t.Fatalf("GetImageURL: %v", err)
	}
	if url != "https://files.example.com/fish.png" {
		t.Fatalf("url = %q", url)
	}
}

func TestAddToCartBody(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["POST /v2/carts/42/items"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}
	client, _ := newTestClient(t, stub)

	if err := client.AddToCart(context.Background(), "42", "p123", 5); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	var body struct {
		Data struct {
			ID       string `json:"id"`
			Type     string `json:"type"`
			Quantity int    `json:"quantity"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(stub.lastBodies["POST /v2/carts/42/items"]), &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if body.Data.ID != "p123" || body.Data.Type != "cart_item" || body.Data.Quantity != 5 {
		t.Fatalf("request body = %+v", body.Data)
	}
}

func TestGetCartAndTotal(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["GET /v2/carts/42/items"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"data":[{
				"id":"i1","name":"Окунь","description":"Свежий","quantity":5,
				"meta":{"display_price":{"with_tax":{
					"unit":{"formatted":"$2.50"},
					"value":{"formatted":"$12.50"}
				}}}
			}],
			"meta":{"display_price":{"with_tax":{"formatted":"$12.50"}}}
		}`)
	}
	client, _ := newTestClient(t, stub)

	lines, total, err := client.GetCartAndTotal(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetCartAndTotal: %v", err)
	}
	if total != "$12.50" {
		t.Fatalf("total = %q", total)
	}
	if len(lines) != 1 || lines[0].UnitPrice != "$2.50" || lines[0].Quantity != 5 {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestNon2xxBecomesUpstreamError(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["GET /v2/inventories/p123"] = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"title":"not found"}]}`, http.StatusNotFound)
	}
	client, _ := newTestClient(t, stub)

	_, err := client.GetStock(context.Background(), "p123")
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *domain.UpstreamError", err)
	}
	if ue.Status != http.StatusNotFound {
		t.Fatalf("status = %d", ue.Status)
	}
	if ue.Op != "get_stock" || ue.Body == "" {
		t.Fatalf("upstream error = %+v", ue)
	}
}

func TestCreateCustomerSendsEmailAsGiven(t *testing.T) {
	stub := newMoltinStub()
	stub.handlers["POST /v2/customers"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}
	client, _ := newTestClient(t, stub)

	if err := client.CreateCustomer(context.Background(), "not really an email"); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	var body struct {
		Data struct {
			Type     string `json:"type"`
			Email    string `json:"email"`
			Password string `json:"password"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(stub.lastBodies["POST /v2/customers"]), &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if body.Data.Type != "customer" || body.Data.Email != "not really an email" || body.Data.Password != "pw" {
		t.Fatalf("request body = %+v", body.Data)
	}
}
