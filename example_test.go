package sitegate_test

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orelode/sitegate"
	"github.com/orelode/sitegate/auth"
	"github.com/orelode/sitegate/bind"
	"github.com/orelode/sitegate/throttle"
	"github.com/orelode/sitegate/throttle/store"
)

func ExampleHandler() {
	r := chi.NewRouter()
	r.Use(sitegate.Handler(sitegate.WithCanonlog()))

	r.Get("/api/health", func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetResponse(r, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func ExampleSetError() {
	handler := func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetError(r, sitegate.ErrNotFound.With("Page not found"))
	}
	_ = handler
}

func Example_publicEndpoint() {
	st := store.NewMemory()
	defer st.Close()

	// Throttle newsletter signups per client IP.
	limiter := throttle.New(st, throttle.DefaultPolicy(),
		throttle.WithIP(),
		throttle.WithName("newsletter"),
	)

	type subscribeRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	r := chi.NewRouter()
	r.Use(sitegate.Handler())
	r.Use(sitegate.MaxBodySize(1 << 20)) // 1MB

	r.With(limiter.Handler).Post("/api/newsletter", func(_ http.ResponseWriter, r *http.Request) {
		var req subscribeRequest
		if !bind.JSON(r, &req) {
			return
		}
		sitegate.SetResponse(r, http.StatusCreated, map[string]string{"status": "subscribed"})
	})
}

func Example_adminRoutes() {
	authn := auth.New(auth.Config{
		AdminEmail:    "admin@example.com",
		PasswordHash:  "$argon2id$v=19$m=65536,t=1,p=4$...",
		SigningSecret: "change-me",
		SessionTTL:    24 * time.Hour,
	})

	r := chi.NewRouter()
	r.Use(sitegate.Handler(sitegate.WithCanonlog()))

	r.Post("/admin/login", auth.LoginHandler(authn))
	r.Post("/admin/logout", auth.LogoutHandler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireSession(authn, auth.WithRedirect("/admin/login")))

		r.Get("/dashboard", func(_ http.ResponseWriter, r *http.Request) {
			session, _ := auth.SessionFromContext(r.Context())
			sitegate.SetResponse(r, http.StatusOK, map[string]string{"email": session.Email})
		})
	})
}

func Example_redisStore() {
	st, err := store.NewRedis(store.RedisConfig{URL: "localhost:6379"})
	if err != nil {
		panic(err)
	}
	defer st.Close()

	// Stricter budget for the contact form, keyed by forwarded client IP.
	limiter := throttle.New(st,
		throttle.Policy{Window: time.Hour, MaxRequests: 5},
		throttle.WithRealIP(),
		throttle.WithEndpoint(),
	)

	r := chi.NewRouter()
	r.Use(sitegate.Handler())
	r.With(limiter.Handler).Post("/api/contact", func(_ http.ResponseWriter, r *http.Request) {
		sitegate.SetResponse(r, http.StatusAccepted, map[string]string{"status": "received"})
	})
}
