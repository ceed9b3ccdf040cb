package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "user_management",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	tokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "user_management",
		Subsystem: "auth",
		Name:      "token_refreshes_total",
		Help:      "Token refresh attempts by outcome.",
	}, []string{"outcome"})
)

const (
	outcomeSuccess            = "success"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeInactive           = "inactive"
	outcomeInvalidToken       = "invalid_token"
	outcomeError              = "error"
)
