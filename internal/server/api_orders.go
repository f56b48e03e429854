package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sjawhar/roomline/internal/order"
)

type submitResponse struct {
	Order       order.Order        `json:"order"`
	Corrections []order.Correction `json:"corrections"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func registerOrderRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		var draft order.Draft
		if err := decodeJSON(w, r, &draft); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		draft.Reference = ""
		o, corrections, err := deps.Orders.Submit(r.Context(), draft)
		if err != nil {
			writeError(w, err)
			return
		}
		if corrections == nil {
			corrections = []order.Correction{}
		}
		writeJSON(w, http.StatusCreated, submitResponse{Order: o, Corrections: corrections})
	})

	mux.HandleFunc("GET /api/orders/{ref}", func(w http.ResponseWriter, r *http.Request) {
		ref := r.PathValue("ref")
		if !validID(ref) {
			writeJSONError(w, http.StatusBadRequest, "invalid order reference")
			return
		}
		o, err := deps.Orders.Get(ref)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	})

	mux.HandleFunc("GET /api/orders", deps.Staff.require(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := order.Filter{
			RoomNumber: q.Get("room"),
			Date:       q.Get("date"),
			CallID:     q.Get("call_id"),
		}
		if raw := q.Get("status"); raw != "" {
			status, err := order.ParseStatus(raw)
			if err != nil {
				writeError(w, err)
				return
			}
			f.Status = status
		}
		if f.Date != "" {
			if _, err := time.Parse("2006-01-02", f.Date); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid date")
				return
			}
		}
		if raw := q.Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			f.Limit = limit
		}

		orders, err := deps.Orders.List(f)
		if err != nil {
			writeError(w, err)
			return
		}
		if orders == nil {
			orders = []order.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}))

	mux.HandleFunc("POST /api/orders/{ref}/status", deps.Staff.require(func(w http.ResponseWriter, r *http.Request) {
		ref := r.PathValue("ref")
		if !validID(ref) {
			writeJSONError(w, http.StatusBadRequest, "invalid order reference")
			return
		}
		var req statusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		to, err := order.ParseStatus(req.Status)
		if err != nil {
			writeError(w, err)
			return
		}

		o, err := deps.Orders.Transition(ref, to, staffName(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}))

	mux.HandleFunc("GET /api/orders/{ref}/history", deps.Staff.require(func(w http.ResponseWriter, r *http.Request) {
		ref := r.PathValue("ref")
		if !validID(ref) {
			writeJSONError(w, http.StatusBadRequest, "invalid order reference")
			return
		}
		history, err := deps.Orders.History(ref)
		if err != nil {
			writeError(w, err)
			return
		}
		if history == nil {
			history = []order.StatusChange{}
		}
		writeJSON(w, http.StatusOK, history)
	}))
}
