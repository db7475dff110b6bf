package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/server/auth"
	"github.com/dmitrijs2005/taskauth/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{common.ErrEmailInUse, http.StatusBadRequest, "Email already in use."},
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password."},
	{common.ErrAccountBanned, http.StatusUnauthorized, "Your account is banned."},
	{common.ErrUserNotFound, http.StatusNotFound, "User not found."},
	{common.ErrRoleNotFound, http.StatusNotFound, "Role not found."},
	{common.ErrAlreadyBanned, http.StatusBadRequest, "User is already banned."},
	{common.ErrNotBanned, http.StatusBadRequest, "User is not banned."},
	{common.ErrRoleAlreadyAssigned, http.StatusBadRequest, "User already has this role."},
}

// writeServiceError maps a service error to its HTTP answer. Anything not
// listed is a store failure and gets a generic 500.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			ErrorResponse(w, r, m.status, m.message)
			return
		}
	}
	s.logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path)
	ErrorResponse(w, r, http.StatusInternalServerError, msgInternal)
}

// decodeAndValidate answers 400 and returns false when the body is unusable.
func (s *HTTPServer) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := DecodeJSONBody(w, r, dst); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func userIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, r, http.StatusOK, response{Success: true, Message: "OK"})
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	id, err := s.auth.Register(r.Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	WriteJSONResponse(w, r, http.StatusOK, registerResponse{
		response: response{Success: true, Message: "User registered successfully."},
		UserID:   id,
	})
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	WriteJSONResponse(w, r, http.StatusOK, loginResponse{
		response:  response{Success: true, Message: "Login successful."},
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.UTC(),
	})
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	WriteJSONResponse(w, r, http.StatusOK, meResponse{
		response:  response{Success: true, Message: "OK"},
		UserID:    claims.UserID,
		Email:     claims.Email,
		Roles:     claims.Roles,
		ExpiresAt: claims.ExpiresAt.UTC(),
	})
}

func (s *HTTPServer) updateProfile(w http.ResponseWriter, r *http.Request) {
	target, err := userIDParam(r)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	if !auth.RequireSelfOrRole(claims, target, common.RoleAdmin) {
		s.logger.Warn(r.Context(), "profile update denied", "caller", claims.UserID, "target", target)
		ErrorResponse(w, r, http.StatusForbidden, msgForbidden)
		return
	}

	var req updateProfileRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	err = s.auth.UpdateProfile(r.Context(), target, services.ProfileUpdate{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	WriteJSONResponse(w, r, http.StatusOK, response{Success: true, Message: "User updated successfully."})
}

func (s *HTTPServer) ban(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := s.moderation.Ban(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	WriteJSONResponse(w, r, http.StatusOK, userResponse{
		response: response{Success: true, Message: fmt.Sprintf("User %s has been banned successfully.", u.Email)},
		User:     newUserView(u),
	})
}

func (s *HTTPServer) unban(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := s.moderation.Unban(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	WriteJSONResponse(w, r, http.StatusOK, userResponse{
		response: response{Success: true, Message: fmt.Sprintf("User %s has been unbanned successfully.", u.Email)},
		User:     newUserView(u),
	})
}

func (s *HTTPServer) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role := r.URL.Query().Get("role")
	if role == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "role is required")
		return
	}

	u, err := s.moderation.AssignRole(r.Context(), id, role)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	WriteJSONResponse(w, r, http.StatusOK, userResponse{
		response: response{Success: true, Message: fmt.Sprintf("Role '%s' assigned successfully to %s.", role, u.Email)},
		User:     newUserView(u),
	})
}
