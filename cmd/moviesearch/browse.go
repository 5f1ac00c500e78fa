package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/MovieSearch/internal/config"
	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
	"github.com/vadimtrunov/MovieSearch/internal/search"
)

const (
	cardWidth    = 26
	cardHeight   = 4
	toastTimeout = 3 * time.Second
)

var (
	styleCard = lipgloss.NewStyle().
			Width(cardWidth).
			Height(cardHeight).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8"))
	styleCardActive = styleCard.BorderForeground(lipgloss.Color("12"))

	styleModal = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("5"))

	styleBanner = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1")).
			Padding(0, 1)
	styleToast = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("11")).
			Padding(0, 1)

	stylePageActive = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

// newBrowseCmd returns the "browse" subcommand for the interactive search UI.
func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Search and browse movies interactively",
		Long: "Open the interactive movie search. Type a title and press Enter,\n" +
			"page with [ and ], open a movie with Enter, Esc to close it, Ctrl+C to exit.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBrowse()
		},
	}
}

// runBrowse starts the Bubble Tea search UI. A missing TMDb token does not
// prevent startup; searches then fail with a configuration banner.
func runBrowse() error {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return errors.New("browse needs an interactive terminal; use \"moviesearch search\" instead")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logFile, err := config.OpenLogFile(cfg.App.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := config.SetupLogger(cfg.App.LogLevel, logFile)

	if cfg.TMDb.Token == "" {
		logger.Warn("tmdb token is not configured; searches will fail")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	toast := &toastState{}
	session := search.NewSession(newTMDbClient(cfg, logger), sessionOptions(cfg, toast, logger))

	p := tea.NewProgram(newBrowseModel(ctx, session, toast), tea.WithAltScreen())

	// Bridge OS signal cancellation into the Bubble Tea event loop.
	go func() {
		<-ctx.Done()
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browse: %w", err)
	}
	return nil
}

// fetchDoneMsg carries a finished search request back to the event loop.
type fetchDoneMsg struct {
	res search.Result
}

// toastExpiredMsg hides the toast with the given id.
type toastExpiredMsg struct {
	id int
}

// toastState is the transient notification area. The session's notifier
// writes into it, so it is shared by pointer across model copies.
type toastState struct {
	text    string
	id      int
	pending bool // shown but expiry not yet scheduled
}

// NotifyEmpty shows the empty-result toast.
func (t *toastState) NotifyEmpty(string) {
	t.text = search.EmptyResultMessage
	t.id++
	t.pending = true
}

type focusArea int

const (
	focusInput focusArea = iota
	focusGrid
)

// browseKeyMap is the key bindings of the browse UI.
type browseKeyMap struct {
	Submit   key.Binding
	Focus    key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Open     key.Binding
	Close    key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Retry    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newBrowseKeyMap() browseKeyMap {
	return browseKeyMap{
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		Focus:    key.NewBinding(key.WithKeys("tab", "/"), key.WithHelp("tab", "switch focus")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Close:    key.NewBinding(key.WithKeys("esc", "q", "enter"), key.WithHelp("esc", "close")),
		NextPage: key.NewBinding(key.WithKeys("]", "n", "pgdown"), key.WithHelp("]/n", "next page")),
		PrevPage: key.NewBinding(key.WithKeys("[", "p", "pgup"), key.WithHelp("[/p", "prev page")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Focus, k.PrevPage, k.NextPage, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Focus, k.Quit},
		{k.Up, k.Down, k.Left, k.Right},
		{k.Open, k.Close, k.Retry},
		{k.PrevPage, k.NextPage, k.Help},
	}
}

// browseModel is the Bubble Tea model for interactive search.
type browseModel struct {
	ctx     context.Context
	session *search.Session
	toast   *toastState

	input   textinput.Model
	spinner spinner.Model
	detail  viewport.Model
	pager   paginator.Model
	help    help.Model
	keys    browseKeyMap

	focus    focusArea
	cursor   int
	toastTTL time.Duration
	width    int
	height   int
	ready    bool
}

// newBrowseModel creates a browseModel with a focused search bar.
func newBrowseModel(ctx context.Context, session *search.Session, toast *toastState) browseModel {
	ti := textinput.New()
	ti.Placeholder = "Search movies..."
	ti.Prompt = "🔎 "
	ti.Focus()
	ti.CharLimit = 200

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleInfo

	pg := paginator.New()
	pg.Type = paginator.Arabic
	pg.ArabicFormat = "%d/%d"

	return browseModel{
		ctx:      ctx,
		session:  session,
		toast:    toast,
		input:    ti,
		spinner:  s,
		detail:   viewport.New(0, 0),
		pager:    pg,
		help:     help.New(),
		keys:     newBrowseKeyMap(),
		toastTTL: toastTimeout,
	}
}

// Init starts the text input blink cursor.
func (m browseModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and user input.
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)

	case tea.KeyMsg:
		model, cmd, handled := m.handleKey(msg)
		if handled {
			return model, cmd
		}

	case fetchDoneMsg:
		m.session.Resolve(msg.res)
		cmd := m.afterChange(nil)
		return m, cmd

	case toastExpiredMsg:
		if m.toast.id == msg.id {
			m.toast.text = ""
		}
		return m, nil

	case spinner.TickMsg:
		if m.session.IsFetching() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if m.focus == focusInput && !m.modalOpen() {
		var tiCmd tea.Cmd
		m.input, tiCmd = m.input.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	return m, tea.Batch(cmds...)
}

// handleResize adjusts widget dimensions on terminal resize.
func (m *browseModel) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.input.Width = max(10, m.width-6)
	m.help.Width = m.width
	m.detail.Width = min(72, max(20, m.width-8))
	m.detail.Height = min(18, max(3, m.height-8))
	m.ready = true
}

// handleKey dispatches key events to the appropriate handler.
func (m *browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if key.Matches(msg, m.keys.Quit) {
		return *m, tea.Quit, true
	}
	if m.modalOpen() {
		return m.handleModalKey(msg)
	}
	if m.focus == focusInput {
		return m.handleInputKey(msg)
	}
	return m.handleGridKey(msg)
}

func (m *browseModel) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if key.Matches(msg, m.keys.Close) {
		m.session.Close()
		return *m, nil, true
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return *m, cmd, true
}

func (m *browseModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		req := m.session.SubmitQuery(m.input.Value())
		m.cursor = 0
		cmd := m.afterChange(req)
		return *m, cmd, true
	case msg.String() == "tab" || msg.String() == "down":
		if len(m.session.View().Items) > 0 {
			m.setFocus(focusGrid)
			return *m, nil, true
		}
	}
	return *m, nil, false
}

func (m *browseModel) handleGridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	v := m.session.View()
	cols := m.columns()

	switch {
	case key.Matches(msg, m.keys.Focus) || msg.String() == "esc":
		m.setFocus(focusInput)
	case msg.String() == "q":
		return *m, tea.Quit, true
	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-1, len(v.Items))
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(1, len(v.Items))
	case key.Matches(msg, m.keys.Up):
		if m.cursor < cols {
			m.setFocus(focusInput)
		} else {
			m.moveCursor(-cols, len(v.Items))
		}
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(cols, len(v.Items))
	case key.Matches(msg, m.keys.Open):
		if v.ShowGrid && m.cursor < len(v.Items) {
			m.openDetail(v.Items[m.cursor])
		}
	case key.Matches(msg, m.keys.NextPage):
		if next, ok := m.session.Pagination().Next(); ok && !v.ShowError {
			cmd := m.changePage(next)
			return *m, cmd, true
		}
	case key.Matches(msg, m.keys.PrevPage):
		if prev, ok := m.session.Pagination().Prev(); ok && !v.ShowError {
			cmd := m.changePage(prev)
			return *m, cmd, true
		}
	case key.Matches(msg, m.keys.Retry):
		cmd := m.afterChange(m.session.Retry())
		return *m, cmd, true
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9':
		// Digits jump to a page link of the visible window.
		n, _ := strconv.Atoi(string(msg.Runes))
		if m.session.Pagination().InRange(n) {
			cmd := m.changePage(n)
			return *m, cmd, true
		}
	}
	return *m, nil, true
}

func (m *browseModel) changePage(n int) tea.Cmd {
	req := m.session.ChangePage(n)
	if req != nil {
		m.cursor = 0
	}
	return m.afterChange(req)
}

func (m *browseModel) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *browseModel) moveCursor(delta, n int) {
	if n == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), n-1)
}

func (m *browseModel) openDetail(movie tmdb.Movie) {
	m.session.Select(movie)
	m.detail.SetContent(renderMovieDetail(movie, m.detail.Width))
	m.detail.GotoTop()
}

func (m browseModel) modalOpen() bool {
	_, ok := m.session.Selected()
	return ok
}

// afterChange returns the commands that follow a session change: the
// fetch for req, the spinner while fetching, and the toast expiry.
func (m *browseModel) afterChange(req *search.Request) tea.Cmd {
	var cmds []tea.Cmd
	if req != nil {
		cmds = append(cmds, fetch(m.ctx, req), m.spinner.Tick)
	}
	if m.toast.pending {
		m.toast.pending = false
		id := m.toast.id
		cmds = append(cmds, tea.Tick(m.toastTTL, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		}))
	}
	if n := len(m.session.View().Items); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	return tea.Batch(cmds...)
}

// fetch runs req off the event loop.
func fetch(ctx context.Context, req *search.Request) tea.Cmd {
	return func() tea.Msg {
		return fetchDoneMsg{res: req.Run(ctx)}
	}
}

// View renders the search bar, status line, grid, pagination and help.
func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.modalOpen() {
		return m.renderModal()
	}

	v := m.session.View()
	var sb strings.Builder

	sb.WriteString(styleHeader.Render("MovieSearch"))
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus(v))
	sb.WriteString("\n")

	if v.ShowGrid {
		sb.WriteString(m.renderGrid(v.Items))
		sb.WriteString("\n")
	}
	if v.Pagination != nil {
		sb.WriteString(m.renderPagination(v))
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// renderStatus is the line between search bar and grid: loader, error
// banner, toast, or a hint.
func (m browseModel) renderStatus(v search.View) string {
	var parts []string
	switch {
	case v.ShowLoader:
		parts = append(parts, m.spinner.View()+styleDim.Render(" Loading movies..."))
	case v.Placeholder:
		parts = append(parts, m.spinner.View()+styleDim.Render(" Updating..."))
	case v.ShowError:
		parts = append(parts, styleBanner.Render(search.UserMessage(v.ErrKind)))
	case v.Status == search.StatusIdle:
		parts = append(parts, styleDim.Render("Type a movie title and press Enter."))
	case v.ShowGrid:
		parts = append(parts, styleDim.Render(fmt.Sprintf("%d movies found", v.TotalResults)))
	}
	if m.toast.text != "" {
		parts = append(parts, styleToast.Render(m.toast.text))
	}
	return strings.Join(parts, "  ")
}

// columns is how many cards fit side by side.
func (m browseModel) columns() int {
	return max(1, m.width/(cardWidth+4))
}

// renderGrid lays out movie cards in rows, scrolled so the cursor row is visible.
func (m browseModel) renderGrid(items []tmdb.Movie) string {
	cols := m.columns()
	rowHeight := cardHeight + 2
	visibleRows := max(1, (m.height-10)/rowHeight)

	cursorRow := m.cursor / cols
	firstRow := max(0, cursorRow-visibleRows+1)

	var rows []string
	for r := firstRow; r < firstRow+visibleRows; r++ {
		start := r * cols
		if start >= len(items) {
			break
		}
		end := min(start+cols, len(items))
		cards := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cards = append(cards, renderCard(items[i], m.focus == focusGrid && i == m.cursor))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(movie tmdb.Movie, active bool) string {
	style := styleCard
	if active {
		style = styleCardActive
	}
	title := movie.Title
	if w := cardWidth - 2; lipgloss.Width(title) > w {
		title = string([]rune(title)[:w-1]) + "…"
	}
	year := "—"
	if y := movie.Year(); y > 0 {
		year = strconv.Itoa(y)
	}
	body := styleTitle.Render(title) + "\n" +
		styleDim.Render(year) + "\n" +
		styleRating.Render(fmt.Sprintf("★ %.1f", movie.VoteAverage))
	return style.Render(body)
}

// renderPagination renders the page window with breaks, prev/next arrows
// and the paginator's "current/total" indicator.
func (m browseModel) renderPagination(v search.View) string {
	pg := m.pager
	pg.TotalPages = v.Pagination.Total
	pg.Page = v.Pagination.Current - 1

	parts := []string{styleDim.Render("←")}
	for _, l := range v.PageLinks {
		switch {
		case l.Break:
			parts = append(parts, styleDim.Render("…"))
		case l.Active:
			parts = append(parts, stylePageActive.Render("["+strconv.Itoa(l.Page)+"]"))
		default:
			parts = append(parts, strconv.Itoa(l.Page))
		}
	}
	parts = append(parts, styleDim.Render("→"), "  "+styleInfo.Render(pg.View()))
	return strings.Join(parts, " ")
}

func (m browseModel) renderModal() string {
	box := styleModal.Render(
		m.detail.View() + "\n\n" + styleDim.Render("esc close · ↑/↓ scroll"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// renderMovieDetail is the scrollable body of the detail modal.
func renderMovieDetail(movie tmdb.Movie, width int) string {
	var sb strings.Builder
	sb.WriteString(styleHeader.Render(movie.Title))
	sb.WriteString("\n")
	if movie.OriginalTitle != "" && movie.OriginalTitle != movie.Title {
		sb.WriteString(styleDim.Render(movie.OriginalTitle) + "\n")
	}
	if movie.ReleaseDate != "" {
		sb.WriteString(styleInfo.Render("Release date: ") + movie.ReleaseDate + "\n")
	}
	sb.WriteString(styleInfo.Render("Rating: ") +
		styleRating.Render(fmt.Sprintf("★ %.1f", movie.VoteAverage)) +
		fmt.Sprintf(" (%d votes)\n", movie.VoteCount))
	if movie.OriginalLanguage != "" {
		sb.WriteString(styleInfo.Render("Language: ") + movie.OriginalLanguage + "\n")
	}
	if poster := tmdb.PosterURL(movie.BackdropPath, "original"); poster != "" {
		sb.WriteString(styleInfo.Render("Backdrop: ") + poster + "\n")
	} else if poster := tmdb.PosterURL(movie.PosterPath, "w500"); poster != "" {
		sb.WriteString(styleInfo.Render("Poster: ") + poster + "\n")
	}
	if movie.Overview != "" {
		sb.WriteString("\n")
		sb.WriteString(wrapText(movie.Overview, width))
	}
	return sb.String()
}
