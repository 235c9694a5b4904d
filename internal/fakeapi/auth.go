package fakeapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type authData struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PhoneNo      string `json:"phoneNo"`
}

// localPhone strips a country code, keeping the last 10 digits.
func localPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) > 10 {
		return phone[len(phone)-10:]
	}
	return phone
}

// issueLocked mints a token pair for u. s.mu must be held.
func (s *Server) issueLocked(u *user) (authData, error) {
	token, err := s.issuer.Issue(u.UserID, u.Role)
	if err != nil {
		return authData{}, err
	}
	rt := uuid.NewString()
	s.refresh[rt] = u.UserID
	return authData{
		Token:        token,
		RefreshToken: rt,
		UserID:       u.UserID,
		Role:         u.Role,
		Name:         u.Name,
		Email:        u.Email,
		PhoneNo:      u.Phone,
	}, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(req.Email)]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if ok, err := verifyPassword(req.Password, u.passwordHash); err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	data, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeData(w, http.StatusOK, data, "Login successful")
}

func (s *Server) handleLoginOTPRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phoneNo"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	_, ok := s.userByPhone(localPhone(req.Phone))
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"phoneNo": req.Phone}, "OTP sent successfully")
}

func (s *Server) handleLoginOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phoneNo"`
		OTP   string `json:"otp"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.userByPhone(localPhone(req.Phone))
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if req.OTP != FixedOTP {
		writeError(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	data, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeData(w, http.StatusOK, data, "Login successful")
}

func (s *Server) handleRegisterOTPRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phoneNo"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	phone := localPhone(req.Phone)
	if _, taken := s.userByPhone(phone); taken {
		writeError(w, http.StatusConflict, "User already exists with this phone number")
		return
	}
	if _, taken := s.users[strings.ToLower(req.Email)]; taken {
		writeError(w, http.StatusConflict, "User already exists with this email")
		return
	}
	s.pending[phone] = &user{
		Role:         "user",
		Name:         req.Name,
		Email:        strings.ToLower(req.Email),
		Phone:        phone,
		passwordHash: hash,
	}
	writeData(w, http.StatusOK, map[string]string{"phoneNo": req.Phone}, "OTP sent successfully")
}

func (s *Server) handleRegisterOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phoneNo"`
		OTP   string `json:"otp"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	phone := localPhone(req.Phone)
	u, ok := s.pending[phone]
	if !ok {
		writeError(w, http.StatusNotFound, "No pending registration for this phone number")
		return
	}
	if req.OTP != FixedOTP {
		writeError(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	delete(s.pending, phone)
	u.UserID = "u-" + uuid.NewString()[:8]
	s.users[u.Email] = u

	data, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeData(w, http.StatusCreated, data, "Registration successful")
}

// handleRefresh rotates the refresh token on every exchange.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.failRefresh.Load() {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	u, ok := s.userByID(userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	delete(s.refresh, req.RefreshToken)
	data, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeData(w, http.StatusOK, map[string]string{
		"token":        data.Token,
		"refreshToken": data.RefreshToken,
	}, "Token refreshed")
}

func (s *Server) handleUserDetails(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userId"]
	if id != userIDFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	s.mu.Lock()
	u, ok := s.userByID(id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeData(w, http.StatusOK, u, "")
}
