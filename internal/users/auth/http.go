// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/payhub/internal/platform/middleware"
	requestutil "github.com/taibuivan/payhub/internal/platform/request"
	"github.com/taibuivan/payhub/internal/platform/respond"
	"github.com/taibuivan/payhub/internal/platform/validate"
	"github.com/taibuivan/payhub/pkg/pagination"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// Session entry points (register, login, federated sign-in, logout), the
// current-principal endpoint and the admin user listing.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// RegisterRoutes binds the session endpoints onto router.
//
// # Endpoints
//   - POST /register       : Creates an account and signs it in.
//   - POST /login          : Verifies credentials and opens a session.
//   - POST /auth/federated : Signs in with a provider ID token (when configured).
//   - POST /logout         : Destroys the session.
//   - GET  /user           : Returns the current principal.
//
// credentialLimit throttles the endpoints that accept credentials.
func (handler *Handler) RegisterRoutes(router chi.Router, credentialLimit func(http.Handler) http.Handler) {
	router.Group(func(r chi.Router) {
		r.Use(credentialLimit)
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		if handler.authService.FederationEnabled() {
			r.Post("/auth/federated", handler.federated)
		}
	})

	router.Post("/logout", handler.logout)
	router.With(middleware.RequireAuthenticated).Get("/user", handler.currentUser)
}

// AdminRoutes returns the admin user endpoints. The caller mounts them behind
// [middleware.RequireAdmin].
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.listUsers)
	return router
}

// # Request Payloads

type registerRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Company  *string `json:"company"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type federatedRequest struct {
	IDToken string `json:"idToken"`
}

/*
Register handles the creation of a new account.

POST /api/register

Request:
  - Body: registerRequest (username, password, fullName?, email?, company?)

Response:
  - 201: Principal, session cookie set
  - 400: VALIDATION_ERROR or DUPLICATE_USERNAME
  - 503: INFRASTRUCTURE_ERROR
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	input.Username = strings.TrimSpace(input.Username)
	input.FullName = trimmedOrNil(input.FullName)
	input.Email = trimmedOrNil(input.Email)
	input.Company = trimmedOrNil(input.Company)

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, input.Username, UsernameMinLength).
		MaxLen(FieldUsername, input.Username, UsernameMaxLength).
		Username(FieldUsername, input.Username).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, PasswordMinLength).
		MaxLen(FieldPassword, input.Password, PasswordMaxLength).
		OptionalEmail(FieldEmail, input.Email)

	if input.FullName != nil {
		validator.MaxLen(FieldFullName, *input.FullName, ProfileFieldMaxLength)
	}
	if input.Company != nil {
		validator.MaxLen(FieldCompany, *input.Company, ProfileFieldMaxLength)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	signedIn, err := handler.authService.Register(request.Context(), RegisterInput{
		Username: input.Username,
		Password: input.Password,
		FullName: input.FullName,
		Email:    input.Email,
		Company:  input.Company,
	}, handler.authService.SessionIDFromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !handler.setSessionCookie(writer, request, signedIn) {
		return
	}
	respond.Created(writer, signedIn.Principal)
}

/*
Login authenticates a username and password pair.

POST /api/login

Response:
  - 200: Principal, session cookie set
  - 400: VALIDATION_ERROR (missing field)
  - 401: INVALID_CREDENTIALS
  - 503: INFRASTRUCTURE_ERROR
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		Required(FieldPassword, input.Password).
		MaxLen(FieldPassword, input.Password, PasswordMaxLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	signedIn, err := handler.authService.Login(request.Context(), LoginInput{
		Username: strings.TrimSpace(input.Username),
		Password: input.Password,
	}, handler.authService.SessionIDFromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !handler.setSessionCookie(writer, request, signedIn) {
		return
	}
	respond.OK(writer, signedIn.Principal)
}

/*
Federated signs in with an ID token obtained from the identity provider.

POST /api/auth/federated

Response:
  - 200: Principal, session cookie set
  - 401: INVALID_CREDENTIALS (token rejected)
*/
func (handler *Handler) federated(writer http.ResponseWriter, request *http.Request) {
	var input federatedRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := (&validate.Validator{}).Required(FieldIDToken, input.IDToken).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	signedIn, err := handler.authService.FederatedLogin(request.Context(), input.IDToken,
		handler.authService.SessionIDFromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !handler.setSessionCookie(writer, request, signedIn) {
		return
	}
	respond.OK(writer, signedIn.Principal)
}

/*
Logout destroys the current session and clears the cookie.

POST /api/logout

Response:
  - 200: Always, including when no session was present
  - 503: INFRASTRUCTURE_ERROR (session store unreachable)
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	sessionID := handler.authService.SessionIDFromRequest(request)

	if err := handler.authService.Logout(request.Context(), sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, handler.authService.ClearCookie(request))
	respond.Message(writer, "Logged out")
}

/*
CurrentUser returns the principal rehydrated for this request.

GET /api/user

Response:
  - 200: Principal
  - 401: UNAUTHENTICATED (enforced by the guard)
*/
func (handler *Handler) currentUser(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, requestutil.Principal(request))
}

/*
ListUsers returns a page of accounts for the admin panel.

GET /api/admin/users?page=&limit=
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	principals, total, err := handler.authService.ListUsers(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, principals, pagination.NewMeta(params.Page, params.Limit, total))
}

// # Helpers

// setSessionCookie writes the cookie for a new session. It reports false when
// an error response has already been written.
func (handler *Handler) setSessionCookie(writer http.ResponseWriter, request *http.Request, signedIn *SignedIn) bool {
	cookie, err := handler.authService.SessionCookie(request, signedIn.Session)
	if err != nil {
		respond.Error(writer, request, err)
		return false
	}
	http.SetCookie(writer, cookie)
	return true
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
