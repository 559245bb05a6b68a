package handler

import "github.com/jwalitptl/kiosk-api/internal/model"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope of every kiosk API reply. Screen carries the route the
// kiosk moved to when the action changed it, so the caller does not poll /flow.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    interface{}     `json:"data,omitempty"`
	Screen  *model.Location `json:"screen,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{Status: StatusSuccess, Data: data}
}

// NewMessageResponse acknowledges an action that returns no data.
func NewMessageResponse(message string) *Response {
	return &Response{Status: StatusSuccess, Message: message}
}

func NewErrorResponse(message string) *Response {
	return &Response{Status: StatusError, Message: message}
}

func (r *Response) OnScreen(loc model.Location) *Response {
	r.Screen = &loc
	return r
}
