// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI runs a Last.fm batch sync:
//  1. [UserListView] : Browse users and their Last.fm links
//  2. [ConfirmView] : Confirm the sync of one user or all linked users
//  3. [SyncView] : Progress bar fed by the batch controller's progress channel
//  4. [ResultView] : Batch totals and a per-user result list
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.BatchController]; esc cancels the running batch.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, a, y/n, esc, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
