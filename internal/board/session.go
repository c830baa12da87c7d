// Package board ties one drawing session together: the element store,
// presence, camera, history, renderer and tools, plus the input routing that
// sits above the tools (panning, zooming, undo shortcuts, tool hotkeys).
package board

import (
	"image"
	"strings"
	"sync"
	"time"

	"CollabBoard/internal/camera"
	"CollabBoard/internal/history"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/render"
	"CollabBoard/internal/state"
	"CollabBoard/internal/suggest"
	"CollabBoard/internal/tools"
)

// KeySpace is the host toolkit's name for the space bar.
const KeySpace = "Space"

// wheelScale turns wheel deltas into zoom deltas.
const wheelScale = 1000.0

var shortcuts = map[string]tools.Kind{
	"V": tools.KindSelect,
	"R": tools.KindRectangle,
	"O": tools.KindEllipse,
	"D": tools.KindDiamond,
	"L": tools.KindLine,
	"A": tools.KindArrow,
	"P": tools.KindPencil,
	"E": tools.KindEraser,
	"T": tools.KindText,
	"K": tools.KindLaser,
}

// Options configures a Session.
type Options struct {
	// SiteID identifies this replica. Generated when empty.
	SiteID string
	User   presence.User

	Theme         render.Theme
	Grid          render.GridMode
	CaptureWindow time.Duration
	Generator     render.Generator
	Now           func() time.Time
}

// Suggestion is a pending offer to clean up a freehand stroke.
type Suggestion struct {
	ID     string
	Target state.ElementType
}

// Session is one user's view of a shared board.
type Session struct {
	Store    *state.Store
	Presence *presence.Channel
	Camera   *camera.Camera
	History  *history.Manager
	Renderer *render.Renderer
	Tools    *tools.Manager

	now func() time.Time

	mu           sync.Mutex
	style        state.Style
	onStyle      func(state.Style)
	onSuggestion func(Suggestion)
	onTool       func(tools.Kind)
	pending      *Suggestion

	panning bool
	space   bool
	lastX   float64
	lastY   float64
}

// NewSession builds a session. input is the host's text editor; it may be nil
// when text entry is not needed.
func NewSession(opts Options, input tools.TextInput) *Session {
	if opts.SiteID == "" {
		opts.SiteID = state.NewSiteID()
	}
	if opts.User.Name == "" {
		opts.User = presence.NewUser()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		Store:    state.NewStore(opts.SiteID),
		Presence: presence.NewChannel(opts.SiteID, opts.User),
		Camera:   camera.New(),
		now:      opts.Now,
		style:    state.DefaultStyle(),
	}

	var hopts []history.Option
	if opts.CaptureWindow > 0 {
		hopts = append(hopts, history.WithCaptureWindow(opts.CaptureWindow))
	}
	hopts = append(hopts, history.WithClock(opts.Now))
	s.History = history.New(s.Store, hopts...)

	ropts := []render.Option{render.WithTheme(opts.Theme), render.WithGridMode(opts.Grid)}
	if opts.Generator != nil {
		ropts = append(ropts, render.WithGenerator(opts.Generator))
	}
	s.Renderer = render.New(s.Store, s.Presence, s.Camera, ropts...)

	s.Tools = tools.NewManager(&tools.Context{
		Store:           s.Store,
		Presence:        s.Presence,
		Camera:          s.Camera,
		Style:           s.Style,
		Author:          opts.User.Name,
		TextInput:       input,
		OnStyleSnapshot: s.mirrorStyle,
		OnCommit:        s.considerStroke,
		Now:             opts.Now,
	})
	return s
}

// OnStyleChange registers fn to be told when the current style changes
// because the user picked an element.
func (s *Session) OnStyleChange(fn func(state.Style)) {
	s.mu.Lock()
	s.onStyle = fn
	s.mu.Unlock()
}

// OnSuggestion registers fn to be told about new cleanup suggestions.
func (s *Session) OnSuggestion(fn func(Suggestion)) {
	s.mu.Lock()
	s.onSuggestion = fn
	s.mu.Unlock()
}

// OnToolChange registers fn to be told when a hotkey switches tools.
func (s *Session) OnToolChange(fn func(tools.Kind)) {
	s.mu.Lock()
	s.onTool = fn
	s.mu.Unlock()
}

func (s *Session) world(sx, sy float64) state.Point {
	x, y := s.Camera.ScreenToWorld(sx, sy)
	return state.Point{X: x, Y: y}
}

func (s *Session) event(sx, sy float64, b tools.Button) tools.PointerEvent {
	return tools.PointerEvent{World: s.world(sx, sy), ScreenX: sx, ScreenY: sy, Button: b}
}

// PointerDown starts a pan (middle button or space held) or forwards to the
// active tool.
func (s *Session) PointerDown(sx, sy float64, b tools.Button) {
	if s.space || b == tools.ButtonMiddle {
		s.panning = true
		s.lastX, s.lastY = sx, sy
		return
	}
	if b != tools.ButtonPrimary {
		return
	}
	s.History.StopCapturing()
	s.Tools.PointerDown(s.event(sx, sy, b))
}

// PointerMove publishes the cursor and pans or forwards to the active tool.
func (s *Session) PointerMove(sx, sy float64) {
	p := s.world(sx, sy)
	s.Presence.SetCursor(&p)
	if s.panning {
		s.Camera.Pan(sx-s.lastX, sy-s.lastY)
		s.lastX, s.lastY = sx, sy
		return
	}
	s.Tools.PointerMove(s.event(sx, sy, tools.ButtonPrimary))
}

// PointerUp ends a pan or forwards to the active tool.
func (s *Session) PointerUp(sx, sy float64, b tools.Button) {
	if s.panning {
		s.panning = false
		return
	}
	s.Tools.PointerUp(s.event(sx, sy, b))
}

// PointerLeave hides the local cursor from peers.
func (s *Session) PointerLeave() {
	s.Presence.SetCursor(nil)
}

// Scroll zooms around the pointer.
func (s *Session) Scroll(sx, sy, dy float64) {
	s.Camera.ZoomAt(-dy/wheelScale, sx, sy)
}

// KeyDown routes undo/redo, tool keys and tool hotkeys. It reports whether
// the key was used.
func (s *Session) KeyDown(ev tools.KeyEvent) bool {
	if ev.Key == KeySpace {
		s.space = true
		return true
	}
	if ev.Ctrl {
		switch strings.ToUpper(ev.Key) {
		case "Z":
			if ev.Shift {
				s.Redo()
			} else {
				s.Undo()
			}
			return true
		case "Y":
			s.Redo()
			return true
		}
		return false
	}

	s.Tools.KeyDown(ev)

	if t, ok := s.Tools.Tool(tools.KindText).(*tools.Text); ok && t.Editing() {
		return true
	}
	if k, ok := shortcuts[strings.ToUpper(ev.Key)]; ok && !ev.Shift {
		if err := s.SetTool(k); err == nil {
			s.mu.Lock()
			fn := s.onTool
			s.mu.Unlock()
			if fn != nil {
				fn(k)
			}
		}
		return true
	}
	return true
}

// KeyUp tracks the space bar.
func (s *Session) KeyUp(key string) {
	if key == KeySpace {
		s.space = false
	}
}

// Blur tells the active tool that keyboard focus went elsewhere.
func (s *Session) Blur() {
	s.space = false
	s.Tools.Blur()
}

// SetTool switches the active tool.
func (s *Session) SetTool(k tools.Kind) error {
	return s.Tools.SetActive(k)
}

// Tool returns the active tool kind.
func (s *Session) Tool() tools.Kind { return s.Tools.Active() }

// Style returns the style new elements take.
func (s *Session) Style() state.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// SetStyle updates the current style and applies the change to the selected
// elements as one undo step.
func (s *Session) SetStyle(c tools.StyleChange) error {
	s.mu.Lock()
	s.style = c.Apply(s.style)
	s.mu.Unlock()

	ids := s.Tools.Selection().Selected()
	if len(ids) == 0 {
		return nil
	}
	s.History.StopCapturing()
	_, err := tools.ApplyStyle(s.Store, ids, c)
	s.History.StopCapturing()
	return err
}

func (s *Session) mirrorStyle(st state.Style) {
	s.mu.Lock()
	s.style = st
	fn := s.onStyle
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (s *Session) considerStroke(el state.Element) {
	target, ok := suggest.Suggest(el)
	if !ok {
		return
	}
	sg := Suggestion{ID: el.ID, Target: target}
	s.mu.Lock()
	s.pending = &sg
	fn := s.onSuggestion
	s.mu.Unlock()
	if fn != nil {
		fn(sg)
	}
}

// PendingSuggestion returns the outstanding suggestion, if any.
func (s *Session) PendingSuggestion() (Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Suggestion{}, false
	}
	return *s.pending, true
}

// ApplySuggestion replaces the suggested stroke with its clean shape. It
// returns false when there is nothing to apply or the stroke has changed
// shape or disappeared since.
func (s *Session) ApplySuggestion() bool {
	s.mu.Lock()
	sg := s.pending
	s.pending = nil
	s.mu.Unlock()
	if sg == nil {
		return false
	}
	el, ok := s.Store.Get(sg.ID)
	if !ok || !suggest.IsCandidate(el) {
		return false
	}
	s.History.StopCapturing()
	err := s.Store.Set(suggest.Cleanup(el, sg.Target))
	s.History.StopCapturing()
	return err == nil
}

// DismissSuggestion drops the outstanding suggestion.
func (s *Session) DismissSuggestion() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Undo reverts the last local change group.
func (s *Session) Undo() bool {
	ok := s.History.Undo()
	s.Tools.Selection().Prune()
	return ok
}

// Redo reapplies the last undone group.
func (s *Session) Redo() bool {
	ok := s.History.Redo()
	s.Tools.Selection().Prune()
	return ok
}

// Tick advances animations. Call it once per frame.
func (s *Session) Tick(now time.Time) {
	s.Tools.Tick(now)
	s.Tools.Selection().Prune()
}

// Frame ticks and renders a w×h frame.
func (s *Session) Frame(w, h int) *image.RGBA {
	now := s.now()
	s.Tick(now)
	return s.Renderer.Frame(w, h, now)
}

// Close deactivates the active tool and stops recording history.
func (s *Session) Close() {
	s.Tools.Close()
	s.History.Close()
}
