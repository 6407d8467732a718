// Package httpx writes the JSON bodies shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/workshop-planner/api/internal/platform/requestctx"
	"github.com/workshop-planner/api/internal/platform/textutil"
)

// Error is the API error envelope:
//
//	{"error":"work_item_not_found","message":"...","status":404,"request_id":"...","trace_id":"..."}
type Error struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// NewError builds an envelope. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    textutil.SingleLine(code, 80),
		Message: textutil.SingleLine(message, 512),
		Status:  status,
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// WriteError writes e, stamping the request and trace ids found on ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, e Error) {
	if e.Status == 0 {
		e.Status = http.StatusInternalServerError
	}
	if e.RequestID == "" {
		e.RequestID = textutil.SingleLine(middleware.GetReqID(ctx), 80)
	}
	if e.TraceID == "" {
		e.TraceID = textutil.SingleLine(requestctx.Trace(ctx).TraceID, 64)
	}
	WriteJSON(w, e.Status, e)
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
