// Package services implements the remote collaborators of the reconciliation pipeline.
//
// # Status API
//
// [StatusService] implements [StatusClient]. It authenticates once per run with an account id and secret
// and receives a bearer token valid for a bounded session. Each Verify call looks up one account.
//
// Responses with a falsy state, non-2xx codes and transport errors are reported as [models.LookupFailed];
// a valid response with an empty accounts array is [models.LookupNotFound]. Neither ever aborts the run.
//
// # Google Sheets
//
// [SheetsService] implements [Destination] on top of google.golang.org/api/sheets/v4.
//
// Credentials come from either a service account key or an installed-app OAuth client whose token is saved
// by `acctsync sheets auth` ([SheetsOAuthConfig], [LoadToken], [SaveToken]).
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrAuthFailed] : credentials rejected or auth state falsy
//   - [shared.ErrNotAuthenticated] : no session, or no saved Sheets token
//   - [shared.ErrSessionExpired] : session used past its expiry
//   - [shared.ErrAPIRequest] : HTTP request failed or returned an unexpected body
//   - [shared.ErrServiceUnavailable] : 5xx from the remote
package services
