package handlers

import (
	"net/http"

	"github.com/pathwise-app/conversation-service/pkg/gateway/apierror"
	"github.com/pathwise-app/conversation-service/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.WriteJSON(w, reqID, apierror.E(apierror.KindNotFound, "not found"))
}
