package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	admission "github.com/oriolmontcreus/cms-sub000"
	"github.com/oriolmontcreus/cms-sub000/internal/content"
	"github.com/oriolmontcreus/cms-sub000/store"
)

/*
====================================
AUTH
====================================
*/

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	identity, err := s.users.CheckPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	token, err := s.engine.IssueToken(r.Context(), identity)
	if err != nil {
		return err
	}

	http.SetCookie(w, s.engine.SessionCookie(token))
	return writeJSON(w, http.StatusOK, identity)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) error {
	if c, err := r.Cookie(s.engine.CookieName()); err == nil {
		s.engine.Forget(c.Value)
	}
	http.SetCookie(w, s.engine.ClearSessionCookie())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) error {
	identity, ok := admission.IdentityFromContext(r.Context())
	if !ok {
		return errors.New("guarded route without identity")
	}
	return writeJSON(w, http.StatusOK, identity)
}

/*
====================================
PAGES
====================================
*/

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, s.pages.List(r.Context()))
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) error {
	page, err := s.pages.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, page)
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) error {
	var in content.PageInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	page, err := s.pages.Create(r.Context(), subjectID(r), in)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, page)
}

func (s *Server) updatePage(w http.ResponseWriter, r *http.Request) error {
	var in content.PageInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	page, err := s.pages.Update(r.Context(), subjectID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, page)
}

func (s *Server) deletePage(w http.ResponseWriter, r *http.Request) error {
	if err := s.pages.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

/*
====================================
USERS
====================================
*/

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, s.users.List(r.Context()))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) error {
	identity, err := s.users.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, admission.ErrUserNotFound) {
		return content.ErrNotFound
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, identity)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) error {
	var in content.UserInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	identity, err := s.users.Create(r.Context(), in)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, identity)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) error {
	var in content.UserInput
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	identity, err := s.users.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, identity)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) error {
	if err := s.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

/*
====================================
BUILD
====================================
*/

func (s *Server) triggerBuild(w http.ResponseWriter, r *http.Request) error {
	status, err := s.builder.Trigger(r.Context(), subjectID(r))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) lastBuild(w http.ResponseWriter, r *http.Request) error {
	status, ok := s.builder.Last()
	if !ok {
		return content.ErrNotFound
	}
	return writeJSON(w, http.StatusOK, status)
}

/*
====================================
SYSTEM
====================================
*/

type healthBody struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) error {
	state := s.engine.StoreState()
	if state == store.StateUnattempted {
		state = s.engine.Connect(r.Context())
	}

	body := healthBody{Status: "ok", Store: state.String()}
	status := http.StatusOK
	if err := s.engine.Healthy(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		body.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	return writeJSON(w, status, body)
}

func subjectID(r *http.Request) string {
	identity, _ := admission.IdentityFromContext(r.Context())
	return identity.ID
}
