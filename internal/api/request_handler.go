package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/api/shared"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/service"
)

const noRequestsMessage = "No request found with your criteria."

// RequestHandler handles swap request HTTP requests. The user in the path
// is the acting user.
type RequestHandler struct {
	requestService service.RequestService
	logger         *slog.Logger
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requestService service.RequestService, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for RequestHandler")
	}

	return &RequestHandler{
		requestService: requestService,
		logger:         logger.With(slog.String("component", "request_handler")),
	}
}

// ListRequests handles GET /users/{id}/requests?status=&origin=&limit=&offset=
// An empty result is answered with 200 and a message.
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if err := checkQueryKeys(r, "status", "origin", "limit", "offset"); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	filter, err := requestFilterFromQuery(r)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	page, err := h.requestService.Filter(r.Context(), userID, filter)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if page.Empty {
		shared.RespondWithMessage(w, r, http.StatusOK, noRequestsMessage)
		return
	}

	resp := SwapRequestListResponse{
		Requests: make([]SwapRequestResponse, 0, len(page.Requests)),
		Total:    page.Total,
	}
	for _, req := range page.Requests {
		resp.Requests = append(resp.Requests, requestToResponse(req))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

func requestFilterFromQuery(r *http.Request) (domain.RequestFilter, error) {
	q := r.URL.Query()
	var filter domain.RequestFilter

	if q.Has("status") {
		status := domain.RequestStatus(q.Get("status"))
		filter.Status = &status
	}
	if q.Has("origin") {
		origin := domain.Origin(q.Get("origin"))
		filter.Origin = &origin
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

// CreateRequest handles POST /users/{id}/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var body CreateSwapRequest
	if !decodeAndValidate(w, r, &body) {
		return
	}

	// The uuid tags have already rejected malformed ids.
	input := service.CreateRequestInput{
		RequestFrom:      userID,
		RequestTo:        uuid.MustParse(body.RequestTo),
		RequestedEntryID: uuid.MustParse(body.RequestedEntryID),
	}
	if body.RequestFrom != "" && uuid.MustParse(body.RequestFrom) != userID {
		HandleAPIError(w, r, service.E(service.KindValidation, "api.create_request",
			"request_from does not match the user in the path.",
			fmt.Errorf("%w: request_from %s, path %s", domain.ErrValidation, body.RequestFrom, userID)))
		return
	}
	if body.TradedEntryID != "" {
		traded := uuid.MustParse(body.TradedEntryID)
		input.TradedEntryID = &traded
	}

	req, err := h.requestService.Create(r.Context(), input)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Info("swap request created",
		slog.String("request_id", req.ID.String()),
		slog.String("request_from", req.RequestFrom.String()),
		slog.String("request_to", req.RequestTo.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, requestToResponse(req))
}

// UpdateRequest handles PUT /users/{id}/requests/{reqId}. The body
// status selects accept or decline.
func (h *RequestHandler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	reqID, err := getPathUUID(r, "reqId")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var body UpdateSwapRequest
	if !decodeAndValidate(w, r, &body) {
		return
	}

	req, err := h.applyStatus(r.Context(), domain.RequestStatus(body.Status), reqID, userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, requestToResponse(req))
}

// applyStatus maps a PUT status onto its transition. Only accepted and
// declined are settable here; cancel has its own route.
func (h *RequestHandler) applyStatus(
	ctx context.Context,
	status domain.RequestStatus,
	reqID, userID uuid.UUID,
) (*domain.Request, error) {
	switch status {
	case domain.RequestStatusAccepted:
		return h.requestService.Accept(ctx, reqID, userID)
	case domain.RequestStatusDeclined:
		return h.requestService.Decline(ctx, reqID, userID)
	default:
		return nil, service.E(service.KindValidation, "api.update_request",
			"Invalid status: invalid value.", fmt.Errorf("unsupported status %q", status))
	}
}

// CancelRequest handles DELETE /users/{id}/requests/{reqId}. The request
// is kept with status cancelled.
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	reqID, err := getPathUUID(r, "reqId")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	req, err := h.requestService.Cancel(r.Context(), reqID, userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, requestToResponse(req))
}
