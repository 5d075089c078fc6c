package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/handler"
	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/notify"
	"github.com/iliyamo/storefront-live/internal/push/pushtest"
	"github.com/iliyamo/storefront-live/internal/service"
	"github.com/iliyamo/storefront-live/internal/session"
)

const secret = "local-secret"

type backend struct {
	statusErr error
}

func (b *backend) SetOrderStatus(_ context.Context, id string, st model.OrderStatus) (model.Order, error) {
	if b.statusErr != nil {
		return model.Order{}, b.statusErr
	}
	return model.Order{ID: id, Number: "1042", Status: st, Version: 9}, nil
}

func (b *backend) SetRole(_ context.Context, id string, r model.Role) (model.User, error) {
	return model.User{ID: id, Name: "Dana", Role: r, Version: 2}, nil
}

func (b *backend) SendMessage(_ context.Context, m api.NewMessage) (model.Message, error) {
	return model.Message{ID: "m1", From: model.UserRef{ID: "a1"}, Body: m.Body, CreatedAt: time.Now()}, nil
}

func (b *backend) ToggleLike(context.Context, string) (api.LikeResult, error) {
	return api.LikeResult{Liked: true, Likes: 1}, nil
}

func (b *backend) Cities(context.Context) ([]string, error) { return []string{"Haifa"}, nil }

func (b *backend) Streets(_ context.Context, city string) ([]string, error) {
	return []string{city + " Main"}, nil
}

func (b *backend) Products(context.Context) ([]model.Product, error) {
	return []model.Product{{ID: "p1", Name: "Lamp", InStock: 2, Version: 1}}, nil
}

func (b *backend) ProductsByCategory(_ context.Context, cat string) ([]model.Product, error) {
	return []model.Product{{ID: "p9", Name: "Shade", Category: cat, Version: 1}}, nil
}

func (b *backend) Discounts(context.Context) ([]model.Product, error) {
	return []model.Product{{ID: "p2", Name: "Desk", Price: 80, Discount: 25}}, nil
}

func (b *backend) CreateProduct(_ context.Context, in api.ProductInput) (model.Product, error) {
	return model.Product{ID: "p3", Name: in.Name, Price: in.Price, InStock: in.InStock, Version: 1}, nil
}

func (b *backend) UpdateProduct(_ context.Context, id string, in api.ProductInput) (model.Product, error) {
	return model.Product{ID: id, Name: in.Name, Price: in.Price, InStock: in.InStock, Version: 2}, nil
}

func (b *backend) DeleteProduct(_ context.Context, id string) error {
	if id == "missing" {
		return &api.Error{Status: http.StatusNotFound, Message: "product not found"}
	}
	return nil
}

func (b *backend) Register(_ context.Context, r api.Registration) (model.User, error) {
	return model.User{ID: "u7", Name: r.Name, Email: r.Email, Role: model.RoleClient, Version: 1}, nil
}

func (b *backend) SetStatus(_ context.Context, id string, _ bool) (model.User, error) {
	return model.User{ID: id, Name: "Dana", Version: 3}, nil
}

func (b *backend) DeleteUser(context.Context, string) error { return nil }

func newServer(t *testing.T) (*echo.Echo, *backend, *handler.ConsoleHandler) {
	t.Helper()
	sess := session.Identity{UserID: "a1", Role: model.RoleAdmin, Name: "Ari"}
	m, _ := pushtest.NewManager(t, model.RoleAdmin)
	orders, _ := live.NewOrderBoard(m)
	users, _ := live.NewUserTable(m)
	inbox, _ := live.NewInbox(m, sess)
	stock, _ := live.NewStockBoard(m)
	n := notify.New(notify.Options{})
	b := &backend{}

	h := &handler.ConsoleHandler{
		Session:    sess,
		Push:       m,
		Orders:     orders,
		Users:      users,
		Inbox:      inbox,
		Stock:      stock,
		OrderSvc:   service.NewOrderService(b, orders, n),
		UserSvc:    service.NewUserService(b, users),
		MessageSvc: service.NewMessageService(b, inbox),
		ProductSvc: service.NewProductService(b, stock),
		Notifier:   n,
		Lookups:    b,
		Catalog:    b,
		Accounts:   b,
	}
	e := echo.New()
	RegisterRoutes(e)
	RegisterConsole(e, h, Options{JWTSecret: secret})
	return e, b, h
}

func bearer(t *testing.T, role model.Role) string {
	t.Helper()
	tok, err := session.NewAccessToken(secret, session.Identity{UserID: "x1", Role: role}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok.Token
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoToken(t *testing.T) {
	e, _, _ := newServer(t)
	if rec := do(e, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/orders", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("orders without token %d", rec.Code)
	}
}

func TestOrderRoutes(t *testing.T) {
	e, b, h := newServer(t)
	admin := bearer(t, model.RoleAdmin)
	h.Orders.Store.Merge(model.Order{ID: "o1", Number: "1042", Status: model.StatusPending, Version: 1})

	rec := do(e, http.MethodGet, "/v1/orders/1042", admin, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"_id":"o1"`) {
		t.Fatalf("get by number: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/orders/404", admin, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing order %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/v1/orders/o1/transitions", admin, "")
	var next struct{ Next []string }
	if err := json.Unmarshal(rec.Body.Bytes(), &next); err != nil || len(next.Next) != 2 {
		t.Fatalf("transitions %s %v", rec.Body.String(), err)
	}

	if rec := do(e, http.MethodPatch, "/v1/orders/o1/status", admin, `{"status":"Shipped"}`); rec.Code != http.StatusConflict {
		t.Fatalf("skip ahead %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, "/v1/orders/o1/status", admin, `{"status":"Lost"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status %d", rec.Code)
	}
	client := bearer(t, model.RoleClient)
	if rec := do(e, http.MethodPatch, "/v1/orders/o1/status", client, `{"status":"Preparing"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("client patch %d", rec.Code)
	}

	b.statusErr = &api.Error{Status: http.StatusUnprocessableEntity, Message: "order locked"}
	rec = do(e, http.MethodPatch, "/v1/orders/o1/status", admin, `{"status":"preparing"}`)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "order locked") {
		t.Fatalf("backend refusal: %d %s", rec.Code, rec.Body.String())
	}

	b.statusErr = nil
	rec = do(e, http.MethodPatch, "/v1/orders/o1/status", admin, `{"status":"preparing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch %d %s", rec.Code, rec.Body.String())
	}
	if o, _ := h.Orders.Lookup("o1"); o.Status != model.StatusPreparing || o.Version != 9 {
		t.Fatalf("board %+v", o)
	}

	rec = do(e, http.MethodGet, "/v1/orders?status=Pending", admin, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("filtered list %s", rec.Body.String())
	}
}

func TestUserRoutesAreStaffOnly(t *testing.T) {
	e, _, h := newServer(t)
	h.Users.Store.Merge(model.User{ID: "u1", Name: "Dana", Role: model.RoleClient, Version: 1})

	if rec := do(e, http.MethodGet, "/v1/users", bearer(t, model.RoleDelivery), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("delivery list %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, "/v1/users/u1/role", bearer(t, model.RoleModerator), `{"role":"Admin"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("moderator patch %d", rec.Code)
	}
	admin := bearer(t, model.RoleAdmin)
	if rec := do(e, http.MethodPatch, "/v1/users/u1/role", admin, `{"role":"wizard"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad role %d", rec.Code)
	}
	rec := do(e, http.MethodPatch, "/v1/users/u1/role", admin, `{"role":"moderator"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"Moderator"`) {
		t.Fatalf("patch %d %s", rec.Code, rec.Body.String())
	}
}

func TestMessageAndStockRoutes(t *testing.T) {
	e, _, h := newServer(t)
	tok := bearer(t, model.RoleAdmin)

	if rec := do(e, http.MethodPost, "/v1/messages", tok, `{"message":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank message %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/v1/messages", tok, `{"message":"restock lamps"}`); rec.Code != http.StatusCreated {
		t.Fatalf("send %d", rec.Code)
	}
	rec := do(e, http.MethodGet, "/v1/messages?page=1&limit=5", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "restock lamps") {
		t.Fatalf("list %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/messages?limit=0", tok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit %d", rec.Code)
	}

	h.Stock.Store.Merge(model.Product{ID: "p1", Name: "Lamp", InStock: 2})
	h.Stock.Store.Merge(model.Product{ID: "p2", Name: "Desk", InStock: 40})
	rec = do(e, http.MethodGet, "/v1/products/stock?below=5", tok, "")
	if !strings.Contains(rec.Body.String(), "Lamp") || strings.Contains(rec.Body.String(), "Desk") {
		t.Fatalf("low stock %s", rec.Body.String())
	}
	if rec := do(e, http.MethodPost, "/v1/products/p1/like", tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("like %d", rec.Code)
	}
}

func TestLookupAndStateRoutes(t *testing.T) {
	e, _, _ := newServer(t)
	tok := bearer(t, model.RoleClient)

	rec := do(e, http.MethodGet, "/v1/lookup/cities/Haifa/streets", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Haifa Main") {
		t.Fatalf("streets %d %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodGet, "/v1/state", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"push":"`) || !strings.Contains(rec.Body.String(), `"events":[`) {
		t.Fatalf("state %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/notifications", tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("notifications %d", rec.Code)
	}
}

func TestCatalogRoutes(t *testing.T) {
	e, _, h := newServer(t)
	admin := bearer(t, model.RoleAdmin)

	rec := do(e, http.MethodGet, "/v1/products?category=lamps", admin, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"category":"lamps"`) {
		t.Fatalf("by category %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := h.Stock.Store.Get("p9"); !ok {
		t.Fatal("catalog not folded into the stock board")
	}
	rec = do(e, http.MethodGet, "/v1/products/discounts", admin, "")
	if !strings.Contains(rec.Body.String(), `"finalPrice":60`) {
		t.Fatalf("discounts %s", rec.Body.String())
	}

	if rec := do(e, http.MethodPost, "/v1/products", bearer(t, model.RoleModerator), `{"name":"Chair"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("moderator create %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/v1/products", admin, `{"name":" ","price":3}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("nameless create %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/v1/products", admin, `{"name":"Chair","price":40,"quantityInStock":6}`); rec.Code != http.StatusCreated {
		t.Fatalf("create %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPut, "/v1/products/p3", admin, `{"name":"Chair","price":35,"quantityInStock":6}`); rec.Code != http.StatusOK {
		t.Fatalf("update %d", rec.Code)
	}
	if p, _ := h.Stock.Store.Get("p3"); p.Price != 35 || p.Version != 2 {
		t.Fatalf("stock board %+v", p)
	}
	if rec := do(e, http.MethodDelete, "/v1/products/p3", admin, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete %d", rec.Code)
	}
	if _, ok := h.Stock.Store.Get("p3"); ok {
		t.Fatal("deleted product still on the board")
	}
	if rec := do(e, http.MethodDelete, "/v1/products/missing", admin, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing %d", rec.Code)
	}
}

func TestAccountRoutes(t *testing.T) {
	e, _, h := newServer(t)
	admin := bearer(t, model.RoleAdmin)

	if rec := do(e, http.MethodPost, "/v1/users", admin, `{"name":"Noa","email":"noa@example.com"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("no password %d", rec.Code)
	}
	rec := do(e, http.MethodPost, "/v1/users", admin, `{"name":"Noa","email":"noa@example.com","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := h.Users.Store.Get("u7"); !ok {
		t.Fatal("new user missing from the table")
	}
	if rec := do(e, http.MethodPatch, "/v1/users/u7/status", admin, `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status without active %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, "/v1/users/u7/status", admin, `{"active":false}`); rec.Code != http.StatusOK {
		t.Fatalf("block %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/v1/users/u7", bearer(t, model.RoleModerator), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("moderator delete %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/v1/users/a1", admin, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("self delete %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/v1/users/u7", admin, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete %d", rec.Code)
	}
	if _, ok := h.Users.Store.Get("u7"); ok {
		t.Fatal("deleted user still in the table")
	}
}
