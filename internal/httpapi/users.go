package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jlynch25/kaizen_api/internal/flow"
	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/services/auth"
	"github.com/jlynch25/kaizen_api/internal/services/users"
	model "github.com/jlynch25/kaizen_api/models"
)

const MsgUserRegistered = "User registered successfully"

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	Message string     `json:"message"`
	User    model.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type walletRequest struct {
	Address string `json:"address" validate:"required"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req, auth.MsgFieldsRequired); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, registerResponse{Message: MsgUserRegistered, User: user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req, auth.MsgInvalidCredentials); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Me(r.Context(), callerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req, auth.MsgFieldsRequired); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Create(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, user)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := s.decode(w, r, &req, msgInvalidBody); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Update(r.Context(), callerID(r), mux.Vars(r)["id"], users.Patch{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), callerID(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageBody{Message: "User deleted"})
}

func (s *Server) setWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := s.decode(w, r, &req, flow.MsgInvalidAddress); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.SetWallet(r.Context(), callerID(r), mux.Vars(r)["id"], req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) clearWallet(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.ClearWallet(r.Context(), callerID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) uploadUserImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if callerID(r) != id {
		s.writeError(w, r, apperr.Forbidden(users.MsgForbidden))
		return
	}

	url, err := s.receiveImage(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.SetImage(r.Context(), callerID(r), id, url)
	if err != nil {
		s.removeUpload(url)
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

// receiveImage handles the single-image upload endpoints.
func (s *Server) receiveImage(w http.ResponseWriter, r *http.Request) (string, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return "", err
	}
	url, ok, err := s.saveImage(r)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Validation(MsgNoImage)
	}
	return url, nil
}
