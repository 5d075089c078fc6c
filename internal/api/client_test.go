package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/session"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/api/", Tokens: session.StaticToken("tok"), ImageURL: srv.URL + "/upload", ImagePreset: "console"})
	if err != nil {
		t.Fatal(err)
	}
	return c, srv
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("accepted %q", u)
		}
	}
}

func TestSetOrderStatusSendsPatch(t *testing.T) {
	var gotAuth, gotRID, gotBody string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/orders/o1/status" {
			http.Error(w, r.Method+" "+r.URL.Path, http.StatusTeapot)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotRID = r.Header.Get("X-Request-ID")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"_id":"o1","orderNumber":"1042","status":"Shipped","version":4}`))
	})
	o, err := c.SetOrderStatus(context.Background(), "o1", model.StatusShipped)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != model.StatusShipped || o.Version != 4 || o.Number != "1042" {
		t.Fatalf("got %+v", o)
	}
	if gotAuth != "Bearer tok" || len(gotRID) != 36 || gotBody != `{"status":"Shipped"}` {
		t.Fatalf("auth=%q rid=%q body=%q", gotAuth, gotRID, gotBody)
	}
}

func TestErrorsCarryStatusAndMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/orders/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"order not found"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"jwt expired"}`))
		}
	})
	_, err := c.Order(context.Background(), "missing")
	if !IsNotFound(err) || !strings.Contains(err.Error(), "order not found") {
		t.Fatalf("got %v", err)
	}
	_, err = c.Profile(context.Background())
	if !IsUnauthorized(err) || IsNotFound(err) {
		t.Fatalf("got %v", err)
	}
	if e, ok := err.(*Error); !ok || e.Message != "jwt expired" || e.RequestID == "" {
		t.Fatalf("got %#v", err)
	}
}

func TestMessagesPaging(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("limit") != "10" {
			http.Error(w, r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]interface{}{{"_id": "m1", "message": "hi", "from": map[string]string{"_id": "a1"}}},
			"total":    11, "page": 2, "totalPages": 2,
		})
	})
	p, err := c.Messages(context.Background(), 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Messages) != 1 || p.Messages[0].Body != "hi" || p.Total != 11 || p.Pages != 2 {
		t.Fatalf("got %+v", p)
	}
}

func TestToggleLikeAndSetRole(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /api/products/p%201/like", "POST /api/products/p 1/like":
			_, _ = w.Write([]byte(`{"liked":true,"likes":3}`))
		case "PATCH /api/users/u1/role":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			_, _ = w.Write([]byte(`{"_id":"u1","role":"` + in["role"] + `"}`))
		default:
			http.NotFound(w, r)
		}
	})
	like, err := c.ToggleLike(context.Background(), "p 1")
	if err != nil || !like.Liked || like.Likes != 3 {
		t.Fatalf("like = %+v %v", like, err)
	}
	u, err := c.SetRole(context.Background(), "u1", model.RoleModerator)
	if err != nil || u.Role != model.RoleModerator {
		t.Fatalf("user = %+v %v", u, err)
	}
}

func TestCatalogCalls(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.Method + " " + r.URL.Path {
		case "GET /api/products/category/lamps":
			_, _ = w.Write([]byte(`[{"_id":"p1","name":"Lamp","category":"lamps"}]`))
		case "GET /api/products/discounts":
			_, _ = w.Write([]byte(`[{"_id":"p2","name":"Desk","price":200,"discount":25}]`))
		case "POST /api/products", "PUT /api/products/p3":
			var in ProductInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(model.Product{ID: "p3", Name: in.Name, Price: in.Price, InStock: in.InStock})
		case "DELETE /api/products/p3":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	lamps, err := c.ProductsByCategory(ctx, "lamps")
	if err != nil || len(lamps) != 1 || lamps[0].Category != "lamps" {
		t.Fatalf("category = %+v %v", lamps, err)
	}
	sale, err := c.Discounts(ctx)
	if err != nil || len(sale) != 1 || sale[0].FinalPrice() != 150 {
		t.Fatalf("discounts = %+v %v", sale, err)
	}
	p, err := c.CreateProduct(ctx, ProductInput{Name: "Chair", Price: 40, InStock: 6})
	if err != nil || p.ID != "p3" || p.InStock != 6 {
		t.Fatalf("create = %+v %v", p, err)
	}
	p, err = c.UpdateProduct(ctx, "p3", ProductInput{Name: "Chair", Price: 35, InStock: 6})
	if err != nil || p.Price != 35 {
		t.Fatalf("update = %+v %v", p, err)
	}
	if err := c.DeleteProduct(ctx, "p3"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteProduct(ctx, "gone"); !IsNotFound(err) {
		t.Fatalf("delete missing = %v", err)
	}
	if len(seen) != 6 {
		t.Fatalf("calls %v", seen)
	}
}

func TestAccountCalls(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /api/users/register":
			var in Registration
			_ = json.NewDecoder(r.Body).Decode(&in)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(model.User{ID: "u7", Name: in.Name, Email: in.Email, Role: model.RoleClient})
		case "PATCH /api/users/u7/status":
			var in map[string]bool
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["active"] {
				http.Error(w, "expected a block", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"_id":"u7","name":"Noa","version":2}`))
		case "DELETE /api/users/u7":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	u, err := c.Register(ctx, Registration{Name: "Noa", Email: "noa@example.com", Password: "pw"})
	if err != nil || u.ID != "u7" || u.Email != "noa@example.com" {
		t.Fatalf("register = %+v %v", u, err)
	}
	u, err = c.SetStatus(ctx, "u7", false)
	if err != nil || u.Version != 2 {
		t.Fatalf("status = %+v %v", u, err)
	}
	if err := c.DeleteUser(ctx, "u7"); err != nil {
		t.Fatal(err)
	}
}

type memLookups struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (l *memLookups) Get(_ context.Context, key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	return b, ok
}

func (l *memLookups) Set(_ context.Context, key string, body []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[key] = body
}

func (l *memLookups) Key(parts ...string) string { return strings.Join(parts, "|") }

func TestLookupsGoThroughCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Path {
		case "/lookup/cities":
			_, _ = w.Write([]byte(`["Haifa","Akko"]`))
		case "/lookup/cities/Haifa/streets":
			_, _ = w.Write([]byte(`["Herzl"]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c, err := New(Options{BaseURL: srv.URL, Lookups: &memLookups{m: map[string][]byte{}}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		cities, err := c.Cities(context.Background())
		if err != nil || len(cities) != 2 {
			t.Fatalf("cities = %v %v", cities, err)
		}
	}
	streets, err := c.Streets(context.Background(), "Haifa")
	if err != nil || len(streets) != 1 || streets[0] != "Herzl" {
		t.Fatalf("streets = %v %v", streets, err)
	}
	if calls != 2 {
		t.Fatalf("backend hit %d times, want 2", calls)
	}
}

func TestUploadImage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Header.Get("Authorization") != "" {
			http.Error(w, "bad upload request", http.StatusBadRequest)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if r.FormValue("upload_preset") != "console" || hdr.Filename != "mug.png" || string(data) != "PNG" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"secure_url":"https://img/mug.png","public_id":"mug"}`))
	})
	up, err := c.UploadImage(context.Background(), "mug.png", strings.NewReader("PNG"))
	if err != nil || up.URL != "https://img/mug.png" {
		t.Fatalf("got %+v %v", up, err)
	}
}
