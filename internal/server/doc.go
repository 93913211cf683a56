// Package server is the trowel HTTP API.
//
// # Overview
//
// Server wires the store, the session guard, the chat relay and the optional
// image bucket behind a chi router:
//
//	srv, err := server.New(ctx, cfg, logger)
//	err = srv.Run(ctx) // blocks until ctx is canceled
//
// Run listens on server.http_addr, or joins the tailnet with tsnet when
// tailscale.enabled is set (plain :80, HTTPS :443 with tailnet certificates,
// or public Funnel).
//
// # Endpoints
//
//	POST   /signup          create an account
//	POST   /login           exchange credentials for a bearer token
//	GET    /users/me        caller identity (bearer)
//	GET    /materials       list the catalog
//	POST   /materials       add a material (bearer)
//	DELETE /materials/{id}  remove a material (bearer)
//	POST   /projects        save a calculation (bearer)
//	GET    /projects        list the caller's calculations (bearer)
//	GET    /ws/{client_id}  websocket chat relay
//	GET    /health          liveness
//	GET    /health/ready    store reachability
//	GET    /metrics         Prometheus exposition when enabled
//
// # Errors
//
// Error bodies are {"detail": "..."}; validation failures are 422 with a
// per-field map. Store outages answer 503 and unexpected failures 500 with a
// generic message. Login never reveals whether the email exists.
package server
