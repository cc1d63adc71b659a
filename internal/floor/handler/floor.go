package handler

import (
	"net/http"
	"seatflow/internal/floor/service"
	httputil "seatflow/pkg/http"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type FloorHandler struct {
	service service.FloorService
	log     *logger.Logger
}

func NewFloorHandler(service service.FloorService, log *logger.Logger) *FloorHandler {
	return &FloorHandler{
		service: service,
		log:     log,
	}
}

func (h *FloorHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *FloorHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *FloorHandler) DayView(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date, err := httputil.PathDate(ps.ByName("date"))
	if err != nil {
		h.writeError(w, "DayView", err)
		return
	}

	view, err := h.service.DayView(r.Context(), date)
	if err != nil {
		h.writeError(w, "DayView", err)
		return
	}

	if err := httputil.WriteList(w, view, len(view.Entries)); err != nil {
		h.log.Error("failed to write list response", "handler", "DayView", "operation", "WriteList", "error", err)
	}
}

func (h *FloorHandler) GetAdjustment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date, err := httputil.PathDate(ps.ByName("date"))
	if err != nil {
		h.writeError(w, "GetAdjustment", err)
		return
	}

	view, err := h.service.GetAdjustment(r.Context(), date, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetAdjustment", err)
		return
	}
	h.writeSuccess(w, "GetAdjustment", view)
}

func (h *FloorHandler) PatchAdjustment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date, err := httputil.PathDate(ps.ByName("date"))
	if err != nil {
		h.writeError(w, "PatchAdjustment", err)
		return
	}

	var patch model.DurationAdjustment
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		h.writeError(w, "PatchAdjustment", err)
		return
	}

	view, err := h.service.PatchAdjustment(r.Context(), date, ps.ByName("id"), &patch)
	if err != nil {
		h.writeError(w, "PatchAdjustment", err)
		return
	}
	h.writeSuccess(w, "PatchAdjustment", view)
}

func (h *FloorHandler) Seat(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.Seat(r.Context(), model.Kind(ps.ByName("kind")), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Seat", err)
		return
	}
	h.writeSuccess(w, "Seat", view)
}

func (h *FloorHandler) Countdown(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.Countdown(r.Context(), model.Kind(ps.ByName("kind")), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Countdown", err)
		return
	}
	h.writeSuccess(w, "Countdown", view)
}

func (h *FloorHandler) Extend(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.Extend(r.Context(), model.Kind(ps.ByName("kind")), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Extend", err)
		return
	}
	h.writeSuccess(w, "Extend", view)
}

func (h *FloorHandler) Clear(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Clear(r.Context(), model.Kind(ps.ByName("kind")), ps.ByName("id")); err != nil {
		h.writeError(w, "Clear", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *FloorHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/days/:date/reservations", h.DayView)
	router.GET("/api/v1/adjustments/:date/:id", h.GetAdjustment)
	router.PATCH("/api/v1/adjustments/:date/:id", h.PatchAdjustment)
	router.POST("/api/v1/reservations/:kind/:id/seat", h.Seat)
	router.GET("/api/v1/reservations/:kind/:id/countdown", h.Countdown)
	router.POST("/api/v1/reservations/:kind/:id/extend", h.Extend)
	router.POST("/api/v1/reservations/:kind/:id/clear", h.Clear)
}
