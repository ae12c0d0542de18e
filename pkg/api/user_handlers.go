package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/httputil"
	"github.com/platinummonkey/pantry/pkg/observability"
	"github.com/platinummonkey/pantry/pkg/storage"
)

const (
	msgFieldRequired = "This field is required."
	msgEmailTaken    = "user with this email already exists."
	msgInvalidEmail  = "Enter a valid email address."
	msgMaxLength     = "Ensure this field has no more than 255 characters."
)

const maxNameLength = 255

// UserResponse is the public view of an account
type UserResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Success string `json:"Success"`
	Token   string `json:"token"`
}

// userRequest is the body of signup and profile updates. Pointers tell
// absent fields from empty ones for PATCH.
type userRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
}

func (req userRequest) validate(partial bool) map[string]string {
	details := map[string]string{}

	if req.Email == nil || strings.TrimSpace(*req.Email) == "" {
		if !partial || req.Email != nil {
			details["email"] = msgFieldRequired
		}
	} else if !strings.Contains(*req.Email, "@") {
		details["email"] = msgInvalidEmail
	} else if len(*req.Email) > maxNameLength {
		details["email"] = msgMaxLength
	}

	if req.Password == nil {
		if !partial {
			details["password"] = msgFieldRequired
		}
	} else if err := auth.ValidatePassword(*req.Password); err != nil {
		details["password"] = err.Error()
	}

	if req.Name == nil || *req.Name == "" {
		if !partial || req.Name != nil {
			details["name"] = msgFieldRequired
		}
	} else if len(*req.Name) > maxNameLength {
		details["name"] = msgMaxLength
	}

	return details
}

func userResponse(u *auth.User) UserResponse {
	return UserResponse{Email: u.Email, Name: u.Name}
}

// createUser handles POST /api/user/create/
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if details := req.validate(false); len(details) > 0 {
		httputil.WriteValidationError(w, "invalid user", details)
		return
	}

	user, err := s.login.Register(r.Context(), *req.Email, *req.Password, *req.Name)
	if errors.Is(err, storage.ErrConflict) {
		httputil.WriteValidationError(w, "invalid user", map[string]string{"email": msgEmailTaken})
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithField("new_user_id", user.ID).Info("user created")
	httputil.WriteCreated(w, userResponse(user))
}

// loginCredentials reads email and password from a JSON or form body
func loginCredentials(r *http.Request) (email, password string, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return "", "", err
		}
		return r.PostFormValue("email"), r.PostFormValue("password"), nil
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.ParseJSON(r, &body); err != nil {
		return "", "", err
	}
	return body.Email, body.Password, nil
}

// loginUser handles POST /api/user/token/. The token is returned in the body
// and set as the auth cookie together with a fresh CSRF token.
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	email, password, err := loginCredentials(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if email == "" || password == "" {
		s.metrics.RecordLogin("invalid")
		httputil.WriteBadRequest(w, auth.MsgMissingLoginFields)
		return
	}

	result, err := s.login.Login(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidLogin) {
		s.metrics.RecordLogin("invalid")
		httputil.WriteBadRequest(w, auth.MsgInvalidLogin)
		return
	}
	if err != nil {
		s.metrics.RecordLogin("error")
		observability.FromContext(r.Context()).WithError(err).Error("login failed")
		httputil.WriteInternalError(w)
		return
	}

	http.SetCookie(w, s.cfg.Auth.AuthCookie(result.Token.Key))
	if _, err := s.csrf.Mint(w, r); err != nil {
		s.metrics.RecordLogin("error")
		observability.FromContext(r.Context()).WithError(err).Error("failed to mint csrf token")
		httputil.WriteInternalError(w)
		return
	}

	s.metrics.RecordLogin("success")
	observability.FromContext(r.Context()).
		WithField("login_user_id", result.User.ID).
		WithField("token_created", result.Created).
		Info("user logged in")

	httputil.WriteSuccess(w, LoginResponse{Success: "Login successfully", Token: result.Token.Key})
}

// logoutUser handles POST /api/user/logout/
func (s *Server) logoutUser(w http.ResponseWriter, r *http.Request) {
	authCtx := caller(r)
	if err := s.login.Logout(r.Context(), authCtx.Token); err != nil {
		writeStoreError(w, r, err)
		return
	}

	http.SetCookie(w, s.cfg.Auth.ExpiredAuthCookie())
	httputil.WriteNoContent(w)
}

// getMe handles GET /api/user/me/
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, userResponse(caller(r).User))
}

// updateMe handles PUT and PATCH /api/user/me/
func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if details := req.validate(r.Method == http.MethodPatch); len(details) > 0 {
		httputil.WriteValidationError(w, "invalid user", details)
		return
	}

	// Reload so the update never starts from a cached copy
	user, err := s.users.GetUserByID(r.Context(), caller(r).UserID())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if req.Email != nil {
		user.Email = auth.NormalizeEmail(*req.Email)
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			httputil.WriteValidationError(w, "invalid user", map[string]string{"password": err.Error()})
			return
		}
		user.PasswordHash = hash
	}

	err = s.users.UpdateUser(r.Context(), user)
	if errors.Is(err, storage.ErrConflict) {
		httputil.WriteValidationError(w, "invalid user", map[string]string{"email": msgEmailTaken})
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, userResponse(user))
}
