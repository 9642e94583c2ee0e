package shop

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"PocketBazaar/internal/cart"
	"PocketBazaar/internal/catalog"
	"PocketBazaar/internal/order"
	"PocketBazaar/pkg/kit"
)

type Server struct {
	Session *Session
}

type cartView struct {
	Items []cart.LineItem `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type productView struct {
	catalog.Product
	CartQuantity int `json:"cart_quantity"`
}

type addItemReq struct {
	ProductID int `json:"product_id"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	kit.Probes(r, s.Session.KV.Ping, s.Session.Log)

	r.Get("/products", s.listProducts)
	r.Get("/products/{id}", s.getProduct)

	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", s.getCart)
		cr.Delete("/", s.clearCart)
		cr.Post("/items", s.addItem)
		cr.Delete("/items/{id}", s.removeItem)
		cr.Post("/items/{id}/increment", s.incrementItem)
		cr.Post("/items/{id}/decrement", s.decrementItem)
	})

	r.Post("/checkout", s.checkout)
	r.Get("/orders", s.listOrders)
	r.Get("/orders/{id}", s.getOrder)

	return r
}

// listProducts degrades to an empty list when the catalog cannot be reached.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Session.Catalog.ListProducts(r.Context())
	if err != nil {
		s.Session.Log.Warn("list products failed", zap.Error(err))
		products = []catalog.Product{}
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := s.Session.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.writeCatalogError(w, r, id, err)
		return
	}

	view := productView{Product: p}
	if it, ok := s.Session.Cart.Item(id); ok {
		view.CartQuantity = it.Quantity
	}
	kit.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.Session.Cart.Clear(r.Context())
	s.writeCart(w)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.ProductID <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return
	}

	p, err := s.Session.Catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		s.writeCatalogError(w, r, req.ProductID, err)
		return
	}

	s.Session.Cart.Add(r.Context(), p)
	s.writeCart(w)
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	if id, ok := productID(w, r); ok {
		s.Session.Cart.Remove(r.Context(), id)
		s.writeCart(w)
	}
}

func (s *Server) incrementItem(w http.ResponseWriter, r *http.Request) {
	if id, ok := productID(w, r); ok {
		s.Session.Cart.Increment(r.Context(), id)
		s.writeCart(w)
	}
}

func (s *Server) decrementItem(w http.ResponseWriter, r *http.Request) {
	if id, ok := productID(w, r); ok {
		s.Session.Cart.Decrement(r.Context(), id)
		s.writeCart(w)
	}
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req order.ShippingDetails
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	o, err := s.Session.Recorder.Checkout(r.Context(), req)
	var verr *order.ValidationError
	switch {
	case err == nil:
		s.Session.Metrics.ObserveCheckout(kit.ResultOK)
		kit.WriteJSON(w, http.StatusCreated, o)
	case errors.As(err, &verr):
		s.Session.Metrics.ObserveCheckout(kit.ResultInvalid)
		kit.WriteError(w, r, http.StatusBadRequest, "please fill in all fields", map[string]any{"missing": verr.Missing})
	case errors.Is(err, order.ErrEmptyCart):
		s.Session.Metrics.ObserveCheckout(kit.ResultInvalid)
		kit.WriteError(w, r, http.StatusBadRequest, "cart is empty", nil)
	default:
		s.Session.Metrics.ObserveCheckout(kit.ResultError)
		s.Session.Log.Error("checkout failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "failed to place order", nil)
	}
}

// listOrders shows an unreadable history the same way as an empty one; the
// viewer has already logged the cause.
func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, _ := s.Session.Viewer.List(r.Context())
	kit.WriteJSON(w, http.StatusOK, orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := s.Session.Viewer.Get(r.Context(), id)
	if err != nil {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, o)
}

func (s *Server) writeCart(w http.ResponseWriter) {
	items := s.Session.Cart.Items()
	kit.WriteJSON(w, http.StatusOK, cartView{
		Items: items,
		Total: cart.Total(items),
		Count: len(items),
	})
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, id int, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"id": id})
		return
	}
	s.Session.Log.Warn("catalog lookup failed", zap.Int("product_id", id), zap.Error(err))
	kit.WriteError(w, r, http.StatusBadGateway, "catalog unavailable", nil)
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "bad product id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}
