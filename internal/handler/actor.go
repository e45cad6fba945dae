package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/coursemarket/internal/auth"
	"github.com/sakif/coursemarket/internal/policy"
)

type actorKey struct{}

// RequireActor runs after auth.RequireAuth. It loads the caller's account
// and role profile once per request and stores the resulting policy.Actor
// in the context for the handlers.
func RequireActor(resolver Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := auth.AccountIDFromContext(r.Context())
			if !ok {
				writeJSON(w, logger, http.StatusUnauthorized, Response{
					Message: "Authentication credentials were not provided or are invalid.",
					Error:   "unauthorized",
				})
				return
			}

			actor, err := resolver.ResolveActor(r.Context(), accountID)
			if err != nil {
				writeError(w, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

func withActor(ctx context.Context, actor policy.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// actorFrom returns the request's actor. Routes without RequireActor get
// the zero Actor, for which every policy check fails.
func actorFrom(r *http.Request) policy.Actor {
	actor, _ := r.Context().Value(actorKey{}).(policy.Actor)
	return actor
}
