package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgUsersFetched MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type usersFetched struct {
	users []*models.User
	err   error
}

type syncComplete struct {
	result *tasks.BatchResult
	err    error
}

// usersFetchedMsg is the constructor for [MsgUsersFetched]
func usersFetchedMsg(users []*models.User, err error) Msg {
	return Msg{kind: MsgUsersFetched, data: usersFetched{users, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.BatchResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}
