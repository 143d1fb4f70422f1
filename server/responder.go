package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/spotifeye/internal/config"
	"github.com/jrsteele09/spotifeye/session"
)

// responder hands /login and /callback results back to the browser. One implementation
// is picked at startup from the configured response style.
type responder interface {
	Login(w http.ResponseWriter, r *http.Request, authURL string)
	CallbackSuccess(w http.ResponseWriter, r *http.Request, s *session.Session)
	CallbackFailure(w http.ResponseWriter, r *http.Request, description string)
}

func newResponder(cfg config.Config) responder {
	if cfg.GetResponseStyle() == config.RedirectStyle {
		return redirectResponder{callbackURL: cfg.GetFrontendCallbackURL()}
	}
	return jsonResponder{}
}

type loginResponse struct {
	AuthURL string `json:"auth_url"`
}

type jsonResponder struct{}

func (jsonResponder) Login(w http.ResponseWriter, _ *http.Request, authURL string) {
	writeJSON(w, loginResponse{AuthURL: authURL}, http.StatusOK)
}

func (jsonResponder) CallbackSuccess(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, s, http.StatusOK)
}

func (jsonResponder) CallbackFailure(w http.ResponseWriter, _ *http.Request, description string) {
	writeJSONError(w, errorCodeExchangeFailed, description, http.StatusBadRequest)
}

type redirectResponder struct {
	callbackURL string
}

func (redirectResponder) Login(w http.ResponseWriter, r *http.Request, authURL string) {
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (rr redirectResponder) CallbackSuccess(w http.ResponseWriter, r *http.Request, s *session.Session) {
	http.Redirect(w, r, rr.frontendURL("token", s.Token), http.StatusFound)
}

func (rr redirectResponder) CallbackFailure(w http.ResponseWriter, r *http.Request, description string) {
	http.Redirect(w, r, rr.frontendURL("error", description), http.StatusFound)
}

func (rr redirectResponder) frontendURL(key, value string) string {
	return rr.callbackURL + "?" + url.Values{key: {value}}.Encode()
}
