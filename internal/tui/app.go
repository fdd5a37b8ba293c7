package tui

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ajramos/echomail/internal/config"
	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/services"
	"github.com/derailed/tview"
)

// ComposeModel is the draft behind the compose form
type ComposeModel interface {
	services.ComposeService
	OnChange(fn func())
}

// SuggestionModel feeds the recipient autocomplete list
type SuggestionModel interface {
	services.SuggestionService
	OnUpdate(fn func(services.Field, []mailbox.Contact))
}

// Deps are the services the UI drives
type Deps struct {
	Config    *config.Config
	Colors    *config.ColorsConfig
	Navigator services.NavigationService
	Compose   ComposeModel
	Suggester SuggestionModel
	// Summaries is optional; nil hides the summarize action
	Summaries services.SummaryService
	Logger    *log.Logger
}

// App encapsulates the terminal UI
type App struct {
	*tview.Application
	pages *tview.Pages
	views map[string]tview.Primitive

	cfg    *config.Config
	colors *config.ColorsConfig
	keys   keymap

	nav       services.NavigationService
	compose   ComposeModel
	suggest   SuggestionModel
	summaries services.SummaryService
	logger    *log.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	composer    *ComposePanel

	mu        sync.Mutex
	state     services.ListState
	rows      []listRow
	summary   map[string]string
	summaryOn bool
	flash     string
}

// NewApp creates the UI on top of the given services
func NewApp(deps Deps) *App {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	colors := deps.Colors
	if colors == nil {
		colors = config.DefaultColors()
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Application: tview.NewApplication(),
		views:       make(map[string]tview.Primitive),
		cfg:         cfg,
		colors:      colors,
		keys:        newKeymap(cfg.Keys),
		nav:         deps.Navigator,
		compose:     deps.Compose,
		suggest:     deps.Suggester,
		summaries:   deps.Summaries,
		logger:      deps.Logger,
		ctx:         ctx,
		cancel:      cancel,
		summary:     make(map[string]string),
	}
	a.initComponents()
	a.bindKeys()
	return a
}

// Run starts the session in the background and blocks until the UI exits
func (a *App) Run() error {
	a.SetRoot(a.pages, true)

	a.unsubscribe = a.nav.Subscribe(func(st services.ListState) {
		a.QueueUpdateDraw(func() { a.render(st) })
	})
	if a.compose != nil {
		a.compose.OnChange(func() {
			a.QueueUpdateDraw(func() { a.composer.load(a.compose.Draft()) })
		})
	}
	if a.suggest != nil {
		a.suggest.OnUpdate(func(field services.Field, contacts []mailbox.Contact) {
			a.QueueUpdateDraw(func() { a.composer.showSuggestions(field, contacts) })
		})
	}

	a.render(a.nav.State())
	go func() {
		err := a.nav.Start(a.ctx)
		switch {
		case errors.Is(err, services.ErrNotAuthenticated):
			a.showStatus("Not signed in. Log in through the mail server and press " + a.cfg.Keys.Refresh)
		case err != nil:
			a.logf("start: %v", err)
			a.showError(err)
		}
	}()

	defer a.shutdown()
	return a.Application.Run()
}

// Stop ends the UI loop
func (a *App) Stop() {
	a.cancel()
	a.Application.Stop()
}

func (a *App) shutdown() {
	a.cancel()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.suggest != nil {
		a.suggest.Close()
	}
}

// do runs a service call off the UI goroutine and reports failures in the status bar
func (a *App) do(name string, fn func(ctx context.Context) error) {
	go func() {
		if err := fn(a.ctx); err != nil {
			if services.IsSkippedError(err) || a.ctx.Err() != nil {
				return
			}
			a.logf("%s: %v", name, err)
			a.showError(err)
		}
	}()
}

// render redraws every pane from a navigator snapshot. Runs on the UI goroutine.
func (a *App) render(st services.ListState) {
	a.mu.Lock()
	prevSelected := selectedID(a.state)
	a.state = st
	a.mu.Unlock()

	a.renderSidebar(st)
	a.renderList(st)
	if id := selectedID(st); id != prevSelected {
		a.mu.Lock()
		a.summaryOn = false
		a.mu.Unlock()
	}
	a.renderDetail(st)
	a.renderStatus()

	if st.ComposeOpen && st.View == services.ViewCompose && a.compose != nil {
		if name, _ := a.pages.GetFrontPage(); name != pageCompose {
			a.composer.load(a.compose.Draft())
			a.pages.SwitchToPage(pageCompose)
			a.composer.focusFirst()
		}
		return
	}
	if name, _ := a.pages.GetFrontPage(); name == pageCompose {
		a.pages.SwitchToPage(pageMain)
		a.SetFocus(a.views["list"])
	}
}

func selectedID(st services.ListState) string {
	if st.Selected == nil {
		return ""
	}
	return st.Selected.ID
}

func (a *App) currentState() services.ListState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
