// Package ui implements the interactive run monitor using bubbletea's Elm architecture.
//
// The TUI walks through three views:
//  1. [ConfirmView] : Confirm the run mode before anything is read or written
//  2. [RunView] : Spinner, per-phase progress bar and a tail of recent pipeline messages
//  3. [ResultView] : Run summary with the dropped identities in a filterable list
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the reconcile engine, so the pipeline never blocks on rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
