// Package auth provides password hashing, bearer tokens and the session guard
// for trowel.
//
// # Passwords
//
// Passwords are hashed with bcrypt at bcrypt.DefaultCost. The hash string
// embeds algorithm, cost and salt, so CheckPassword needs nothing else.
// DummyCompare lets the login handler spend equal time on unknown emails.
//
// # Tokens
//
// JWTVerifier issues and verifies HS256 JWTs carrying "sub" (the user's email),
// "iat" and "exp". The secret is process-wide configuration (auth.jwt_secret)
// and must be at least MinSecretLength bytes. Verify distinguishes:
//
//   - ErrMalformedToken: not a JWT, or not signed with HS256 (including "none")
//   - ErrSignatureInvalid: signature does not match the secret
//   - ErrMissingClaim: no "sub" or no "exp"
//   - ErrExpiredToken: past "exp"
//
// The first three wrap ErrInvalidToken. Tokens are not stored server-side and
// cannot be revoked individually; rotating the secret invalidates all of them.
//
// # Session Guard
//
// Guard.Authenticate verifies a token and looks its subject up in the
// credential store on every call:
//
//	guard := auth.NewGuard(store, verifier)
//	id, err := guard.Authenticate(ctx, token)
//
// A user deleted after the token was issued fails with ErrUnauthorized even
// though the signature is valid. HTTPAuthMiddleware wraps the guard for
// net/http and stores the Identity in the request context:
//
//	r.With(auth.HTTPAuthMiddleware(guard, logger, metrics)).Get("/users/me", h)
//	id := auth.MustFromContext(r.Context())
package auth
