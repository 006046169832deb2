package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/delivery"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/provider/lemonsqueezy"
	"github.com/xraph/fulfillment/reconcile"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": s.eng.Config().ServiceName,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Ping(r.Context()); err != nil {
		s.logger.Error("api: health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Products(r.Context()))
}

type checkoutRequest struct {
	Items []order.CartItem `json:"items"`
}

type checkoutResponse struct {
	CheckoutURL string      `json:"checkoutUrl"`
	CheckoutID  string      `json:"checkoutId"`
	Total       json.Number `json:"total"`
	ItemCount   int         `json:"itemCount"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.eng.Checkout(r.Context(), req.Items)
	if err != nil {
		s.logger.Error("api: checkout failed", "items", len(req.Items), "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		CheckoutURL: res.CheckoutURL,
		CheckoutID:  res.CheckoutID,
		Total:       json.Number(res.Total.FormatMajor()),
		ItemCount:   res.ItemCount,
	})
}

type orderResponse struct {
	Success   bool             `json:"success"`
	Items     []order.LineItem `json:"items,omitempty"`
	ItemCount int              `json:"itemCount"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	p, err := s.eng.PendingOrder(r.Context(), chi.URLParam(r, "checkoutId"))
	if err != nil {
		if fulfillment.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, orderResponse{Success: false})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		Success:   true,
		Items:     p.Items,
		ItemCount: len(p.Items),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("productId")
	if ref == "" {
		ref = q.Get("product_id")
	}
	ref = strings.TrimSpace(ref)
	s.logger.Info("api: download requested",
		"product_id", ref,
		"email", q.Get("email"),
		"request_id", middleware.GetReqID(r.Context()),
	)

	a, err := s.eng.Download(r.Context(), ref)
	if err != nil {
		s.logger.Warn("api: download refused", "product_id", ref, "error", err)
		writeError(w, err)
		return
	}
	if err := delivery.Serve(w, r, a); err != nil {
		s.logger.Warn("api: download interrupted", "product_id", ref, "kind", a.Kind, "error", err)
	}
}

type webhookResponse struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, fulfillment.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	res, err := s.eng.HandleWebhook(r.Context(), body, r.Header.Get(lemonsqueezy.SignatureHeader))
	if err != nil {
		if !errors.Is(err, fulfillment.ErrAuth) {
			s.logger.Error("api: webhook failed", "error", err)
		}
		writeError(w, err)
		return
	}

	status := "success"
	switch res.Outcome {
	case reconcile.OutcomeDuplicate:
		status = "duplicate"
	case reconcile.OutcomeIgnored:
		status = "ignored"
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: status, Event: res.Event.EventName})
}

type syncRequest struct {
	Email string `json:"email"`
}

type purchase struct {
	ProductID   string `json:"productId"`
	VariantID   string `json:"variantId"`
	ProductName string `json:"productName"`
	OrderID     string `json:"orderId"`
}

type syncResponse struct {
	Success   bool       `json:"success"`
	Purchases []purchase `json:"purchases"`
	Error     string     `json:"error,omitempty"`
}

func (s *Server) handleSyncPurchases(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, syncResponse{Error: err.Error()})
		return
	}

	items, err := s.eng.SyncPurchases(r.Context(), req.Email)
	if err != nil {
		s.logger.Warn("api: purchase sync failed", "error", err)
		writeJSON(w, StatusFor(err), syncResponse{Error: publicMessage(err, StatusFor(err))})
		return
	}

	out := syncResponse{Success: true, Purchases: make([]purchase, 0, len(items))}
	for _, it := range items {
		out.Purchases = append(out.Purchases, purchase{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			OrderID:     it.OrderID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type trackRequest struct {
	VisitorID string `json:"visitor_id"`
	Page      string `json:"page"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.eng.Tracker().Track(r.Context(), req.VisitorID, req.Page); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.eng.Tracker().Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type debugFile struct {
	asset.FileDescriptor
	HasDownloadURL bool `json:"has_download_url"`
}

func (s *Server) handleDebugFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.eng.Files(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]debugFile, 0, len(files))
	for _, f := range files {
		has := f.DownloadURL != ""
		f.DownloadURL = ""
		out = append(out, debugFile{FileDescriptor: f, HasDownloadURL: has})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out, "total": len(files)})
}
