// Package session manages the client side of an authenticated session against
// a token-issuing backend: acquiring an access token via Basic-Auth login,
// decoding its expiry, silently refreshing it when a request is rejected, and
// tearing down session-scoped state on logout or terminal refresh failure.
//
// Session lifecycle:
//   - Store is the single source of truth for the current session. Every
//     mutation goes through a named transition (BeginLogin, CompleteRefresh,
//     Logout, ...) guarded by an explicit state map, so interleaved callbacks
//     always observe a consistent session.
//   - Gateway wraps outbound requests. A 401 triggers at most one shared
//     refresh; the failed request is retried exactly once with the new token
//     and a second rejection is terminal for that call.
//   - Monitor polls the store while the account is flagged locked and clears
//     the flag once the server-asserted lockout expiry passes.
//   - Teardown subscribes to session-ended events and purges dependent caches
//     and the persisted snapshot in the same synchronous pass, so no reader can
//     observe a stale authenticated user next to cleared caches.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing login, refresh,
//     logout, and lockout events. Sinks run best-effort (errors are logged) so
//     you can forward to a queue or log pipeline without blocking the session.
package session
