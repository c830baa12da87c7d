package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"CollabBoard/internal/board"
	"CollabBoard/internal/net"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/render"
)

// App is the board window and its session.
type App struct {
	Session *board.Session

	app    fyne.App
	win    fyne.Window
	board  *BoardWidget
	status *widget.Label
	peers  *widget.Label
	link   string
}

// NewApp creates the window and a session configured by opts. shareLink is
// shown in the status bar when not empty.
func NewApp(opts board.Options, shareLink string) *App {
	a := &App{app: app.NewWithID("io.collabboard"), link: shareLink}
	a.win = a.app.NewWindow("CollabBoard")
	a.win.Resize(fyne.NewSize(1280, 800))

	input := NewTextInput()
	a.Session = board.NewSession(opts, input)
	a.board = NewBoardWidget(a.Session, input)
	redraw := a.board.Redraw

	toolbar := NewToolbar(a.Session, redraw)
	toolbar.OnExport = func() { ShowExportDialog(a.win, a.Session, a.SetStatus) }

	grid := widget.NewSelect([]string{"lines", "dots", "none"}, func(v string) {
		if g, ok := render.ParseGridMode(v); ok {
			a.Session.Renderer.SetGridMode(g)
			redraw()
		}
	})
	grid.SetSelected(a.Session.Renderer.GridMode().String())
	look := widget.NewSelect([]string{"light", "dark"}, func(v string) {
		if t, ok := render.ParseTheme(v); ok {
			a.Session.Renderer.SetTheme(t)
			redraw()
		}
	})
	look.SetSelected(a.Session.Renderer.Theme().String())

	a.Session.OnSuggestion(func(sg board.Suggestion) {
		dialog.ShowConfirm("Clean up shape?",
			fmt.Sprintf("That stroke looks like a %s. Replace it with a clean one?", sg.Target),
			func(ok bool) {
				if ok {
					a.Session.ApplySuggestion()
				} else {
					a.Session.DismissSuggestion()
				}
				redraw()
			}, a.win)
	})

	a.status = widget.NewLabel("Ready")
	a.peers = widget.NewLabel("")
	a.Session.Presence.OnChange(func(ch presence.Change) {
		if !ch.Local {
			fyne.Do(a.updatePeers)
		}
	})
	a.updatePeers()

	statusBar := container.NewHBox(a.status, widget.NewSeparator(), a.peers)
	if shareLink != "" {
		statusBar.Add(widget.NewSeparator())
		statusBar.Add(widget.NewLabel(shareLink))
		statusBar.Add(widget.NewButtonWithIcon("", theme.ContentCopyIcon(), func() {
			a.win.Clipboard().SetContent(shareLink)
			a.SetStatus("Share link copied")
		}))
	}

	canvasArea := container.NewStack(a.board, container.NewWithoutLayout(input.Widget()))
	a.win.SetContent(container.NewBorder(toolbar.Object(grid, look, redraw), statusBar, nil, nil, canvasArea))
	a.win.Canvas().Focus(a.board)
	return a
}

func (a *App) updatePeers() {
	states := a.Session.Presence.Peers()
	names := make([]string, 0, len(states))
	for _, rec := range states {
		names = append(names, rec.User.Name)
	}
	if len(names) == 0 {
		a.peers.SetText("No one else here")
		return
	}
	a.peers.SetText(fmt.Sprintf("With %s", strings.Join(names, ", ")))
}

// SetStatus shows text in the status bar. Safe from any goroutine.
func (a *App) SetStatus(text string) {
	fyne.Do(func() { a.status.SetText(text) })
}

// PeerStatus reports replication state; it matches net.PeerOptions.OnStatus.
func (a *App) PeerStatus(s net.Status, err error) {
	switch {
	case err != nil:
		a.SetStatus(fmt.Sprintf("Disconnected: %v", err))
	case s == net.StatusConnected:
		a.SetStatus("Connected")
	case s == net.StatusConnecting:
		a.SetStatus("Connecting...")
	default:
		a.SetStatus("Offline")
	}
}

// Run shows the window and blocks until it closes.
func (a *App) Run() {
	a.win.ShowAndRun()
	a.board.Stop()
	a.Session.Close()
}
