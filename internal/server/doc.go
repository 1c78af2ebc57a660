// Package server runs the short-lived local HTTP server that receives the Google OAuth redirect
// for `acctsync sheets auth`.
//
// [BasicRouter] registers method patterns on an [http.ServeMux] behind a [Middleware] stack;
// [RecoverMiddleware] and [LoggingMiddleware] wrap every route.
//
// [OAuthHandler] accepts a single callback: it compares the state value, exchanges the code and
// publishes one [OAuthResult]. [Authorize] starts the server on the configured redirect port, opens
// the consent page and waits for that result, the context or a timeout.
package server
