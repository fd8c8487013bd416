package controllers

import (
	"net/http"

	"github.com/lunastore/storefront/api/responses"
	"github.com/lunastore/storefront/pkg/config"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lunastore-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}
