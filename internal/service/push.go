// Package service implements the campus features: page loaders and renderers
// registered with the navigator, the write flows behind every button, the
// session bootstrap and the realtime resync of a signed-in session.
package service

import (
	"github.com/ecocampus/ecocampus-server/internal/sse"
	"github.com/ecocampus/ecocampus-server/internal/state"
)

// Modal names pushed to the browser.
const (
	ModalCheckin = "checkin"
	ModalQuiz    = "quiz"
	ModalCamera  = "camera"
	ModalSport   = "sport"
)

// LoginPath is where the browser goes when a session ends.
const LoginPath = "/login"

func toast(st *state.AppState, level, message string) {
	st.Notify(string(sse.EventToast), sse.ToastEventData{Level: level, Message: message})
}

func toastSuccess(st *state.AppState, message string) {
	toast(st, sse.ToastSuccess, message)
}

func toastError(st *state.AppState, message string) {
	toast(st, sse.ToastError, message)
}

func pushModal(st *state.AppState, modal string, open bool, data any) {
	st.Notify(string(sse.EventModal), sse.ModalEventData{Modal: modal, Open: open, Data: data})
}

func pushRedirect(st *state.AppState, location, reason string) {
	st.Notify(string(sse.EventRedirect), sse.RedirectEventData{Location: location, Reason: reason})
}
