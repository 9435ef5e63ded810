package api

import (
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gofrs/uuid"
	"github.com/gorilla/schema"
	"github.com/haveachin/proxypass/internal/app/proxypass"
)

type sessionDTO struct {
	ID            string    `json:"id"`
	RemoteAddr    string    `json:"remoteAddress"`
	State         string    `json:"state"`
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	Identity      string    `json:"identity,omitempty"`
	XUID          string    `json:"xuid,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newSessionDTO(s proxypass.SessionInfo) sessionDTO {
	dto := sessionDTO{
		ID:            s.ID.String(),
		RemoteAddr:    s.RemoteAddr,
		State:         s.State.String(),
		Authenticated: s.Authenticated,
		CreatedAt:     s.CreatedAt,
	}

	if s.Authenticated {
		dto.Username = s.AuthData.DisplayName
		dto.Identity = s.AuthData.Identity.String()
		dto.XUID = s.AuthData.XUID
	}
	return dto
}

func sessionByID(sm proxypass.SessionManager, r *http.Request) (proxypass.SessionInfo, int) {
	id, err := uuid.FromString(chi.URLParam(r, "sessionID"))
	if err != nil {
		return proxypass.SessionInfo{}, http.StatusUnprocessableEntity
	}

	for _, s := range sm.Sessions() {
		if s.ID == id {
			return s, http.StatusOK
		}
	}
	return proxypass.SessionInfo{}, http.StatusNotFound
}

func getSessionHandler(sm proxypass.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, status := sessionByID(sm, r)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		render.JSON(w, r, newSessionDTO(s))
	}
}

func getSessionsHandler(sm proxypass.SessionManager) http.HandlerFunc {
	decoder := schema.NewDecoder()
	return func(w http.ResponseWriter, r *http.Request) {
		reqDTO := &struct {
			UsernameRegex string `schema:"usernameRegex"`
			State         string `schema:"state"`
		}{}

		if err := decoder.Decode(reqDTO, r.URL.Query()); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		var usernameRegex *regexp.Regexp
		if reqDTO.UsernameRegex != "" {
			var err error
			usernameRegex, err = regexp.Compile(reqDTO.UsernameRegex)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		respDTOs := []sessionDTO{}
		for _, s := range sm.Sessions() {
			if reqDTO.State != "" && s.State.String() != reqDTO.State {
				continue
			}

			if usernameRegex != nil && (!s.Authenticated || !usernameRegex.MatchString(s.AuthData.DisplayName)) {
				continue
			}

			respDTOs = append(respDTOs, newSessionDTO(s))
		}

		render.JSON(w, r, respDTOs)
	}
}

func deleteSessionHandler(sm proxypass.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, status := sessionByID(sm, r)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		if !sm.CloseSession(s.ID) {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
