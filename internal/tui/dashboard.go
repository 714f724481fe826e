// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/tidwall/gjson"

	"github.com/go-preheat/preheat/internal/async"
	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/output"
	"github.com/go-preheat/preheat/internal/preload"
	"github.com/go-preheat/preheat/internal/request"
	"github.com/go-preheat/preheat/internal/viewstate"
)

const (
	maxBodyColumns = 6
	maxBodyRows    = 20
	maxCellWidth   = 24
)

// ReloadMsg asks the dashboard to reload its view set from config. The watch
// command sends it when the config file changes.
type ReloadMsg struct{}

type initMsg struct{}

type statusMsg netstatus.Snapshot

type outcomeMsg preload.Outcome

type warmDoneMsg preload.Report

type payloadMsg struct {
	name string
	res  *request.Result
	err  error
}

type viewsMsg struct {
	views []preload.View
	err   error
}

// viewData is what the dashboard knows about one view's payload.
type viewData struct {
	data      []byte
	stale     bool
	fromCache bool
	loading   bool
	err       error
}

// Dashboard is the bubbletea model behind the watch command. It shows a tab
// per configured view, the active view's rows as a table (or a skeleton while
// nothing is cached yet), and a connection status footer.
type Dashboard struct {
	session *viewstate.Session
	pre     *preload.Manager
	req     *request.Manager
	mon     *netstatus.Monitor
	viewsFn *async.CachedFunc[[]preload.View]

	styles    Styles
	statusbar StatusBar
	skeleton  Skeleton
	loading   Loading
	warm      WarmProgress
	warming   bool

	views  []preload.View
	active int
	data   map[string]*viewData

	snap netstatus.Snapshot
	err  error

	statusCh     <-chan netstatus.Snapshot
	statusCancel func()
	warmCh       <-chan preload.Outcome
	warmCancel   func()

	width  int
	height int
}

// DashboardOption customizes a Dashboard.
type DashboardOption func(*Dashboard)

// WithDashboardStyles overrides the stock styles.
func WithDashboardStyles(styles Styles) DashboardOption {
	return func(d *Dashboard) {
		d.styles = styles
	}
}

// NewDashboard builds the watch model. viewsFn loads the configured view set
// and is re-run, through a flushable cache, whenever the config file changes.
func NewDashboard(
	session *viewstate.Session,
	pre *preload.Manager,
	req *request.Manager,
	mon *netstatus.Monitor,
	viewsFn func() ([]preload.View, error),
	opts ...DashboardOption,
) (Dashboard, error) {
	d := Dashboard{
		session: session,
		pre:     pre,
		req:     req,
		mon:     mon,
		viewsFn: async.NewCachedFunc(viewsFn),
		styles:  DefaultStyles(),
		data:    make(map[string]*viewData),
	}
	for _, opt := range opts {
		opt(&d)
	}

	d.statusbar = NewStatusBar(d.styles)
	d.skeleton = NewSkeleton(6, 48, d.styles)
	d.loading = NewLoading("refreshing", d.styles)

	views, err := d.viewsFn.Get()
	if err != nil {
		return Dashboard{}, err
	}
	d.views = views
	session.Bind(views...)

	d.snap = mon.Status()
	d.statusCh, d.statusCancel = mon.Subscribe(8)
	d.warmCh, d.warmCancel = pre.Subscribe(16)

	return d, nil
}

// ActiveView returns the name of the view under the cursor.
func (m Dashboard) ActiveView() string {
	if len(m.views) == 0 {
		return ""
	}
	return m.views[m.active].Name
}

// Err returns the last error the dashboard is displaying.
func (m Dashboard) Err() error {
	return m.err
}

// Init arms the tickers, the subscription readers and the first view switch.
func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(
		m.skeleton.Init(),
		m.loading.Init(),
		waitStatus(m.statusCh),
		waitOutcome(m.warmCh),
		func() tea.Msg { return initMsg{} },
	)
}

// Update is the dashboard state machine.
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case initMsg:
		return m.switchTo(m.active)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.skeleton.SetSize(min(8, max(3, msg.Height-8)), max(16, msg.Width-4))
		m.warm.SetWidth(max(16, msg.Width-24))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case statusMsg:
		m.snap = netstatus.Snapshot(msg)
		return m, waitStatus(m.statusCh)

	case outcomeMsg:
		if m.warming {
			m.warm.Observe(preload.Outcome(msg))
		}
		return m, waitOutcome(m.warmCh)

	case warmDoneMsg:
		m.warming = false
		rep := preload.Report(msg)
		if rep.Failed > 0 {
			m.err = fmt.Errorf("%d of %d views failed to warm", rep.Failed, len(rep.Outcomes))
		} else {
			m.err = nil
		}
		// Everything just warmed is cached now, pick up the active view.
		if len(m.views) > 0 {
			return m, m.fetch(m.views[m.active], request.PolicyCacheFirst)
		}
		return m, nil

	case payloadMsg:
		d := m.viewData(msg.name)
		d.loading = false
		if msg.err != nil {
			d.err = msg.err
			return m, nil
		}
		d.err = nil
		d.data = msg.res.Data
		d.stale = msg.res.Stale
		d.fromCache = msg.res.FromCache
		return m, nil

	case ReloadMsg:
		m.viewsFn.Flush()
		return m, m.reloadViews()

	case viewsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.views = msg.views
		m.session.Bind(msg.views...)
		if m.active >= len(m.views) {
			m.active = 0
		}
		if len(m.views) > 0 {
			return m.switchTo(m.active)
		}
		return m, nil
	}

	var (
		cmds []tea.Cmd
		cmd  tea.Cmd
	)
	m.skeleton, cmd = m.skeleton.Update(msg)
	cmds = append(cmds, cmd)
	m.loading, cmd = m.loading.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.statusCancel()
		m.warmCancel()
		return m, tea.Quit

	case "tab":
		if len(m.views) > 0 {
			return m.switchTo((m.active + 1) % len(m.views))
		}

	case "shift+tab":
		if len(m.views) > 0 {
			return m.switchTo((m.active + len(m.views) - 1) % len(m.views))
		}

	case "r":
		if len(m.views) > 0 {
			v := m.views[m.active]
			m.viewData(v.Name).loading = true
			return m, m.fetch(v, request.PolicyRevalidate)
		}

	case "w":
		if !m.warming && len(m.views) > 0 {
			m.warming = true
			m.warm = NewWarmProgress(len(m.views), m.styles)
			m.warm.SetWidth(max(16, m.width-24))
			return m, m.warmAll()
		}
	}
	return m, nil
}

// switchTo moves the cursor, records the visit in the session (which hints the
// preloader for anything not already hot) and fetches the view if the
// dashboard has nothing to show for it yet.
func (m Dashboard) switchTo(i int) (tea.Model, tea.Cmd) {
	if len(m.views) == 0 {
		return m, nil
	}
	m.active = i
	v := m.views[i]

	if _, err := m.session.Switch(context.Background(), v.Name); err != nil {
		m.err = err
		return m, nil
	}

	d := m.viewData(v.Name)
	if d.data == nil && !d.loading {
		d.loading = true
		return m, m.fetch(v, request.PolicyCacheFirst)
	}
	return m, nil
}

func (m Dashboard) viewData(name string) *viewData {
	d, ok := m.data[name]
	if !ok {
		d = &viewData{}
		m.data[name] = d
	}
	return d
}

func (m Dashboard) fetch(v preload.View, policy request.Policy) tea.Cmd {
	req := m.req
	return func() tea.Msg {
		res, err := req.Do(context.Background(), request.Request{
			URL:    v.URL,
			TTL:    v.TTL,
			Policy: policy,
		})
		return payloadMsg{name: v.Name, res: res, err: err}
	}
}

func (m Dashboard) warmAll() tea.Cmd {
	pre, views := m.pre, m.views
	return func() tea.Msg {
		return warmDoneMsg(pre.WarmAll(context.Background(), views))
	}
}

func (m Dashboard) reloadViews() tea.Cmd {
	fn := m.viewsFn
	return func() tea.Msg {
		views, err := fn.Get()
		return viewsMsg{views: views, err: err}
	}
}

func waitStatus(ch <-chan netstatus.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return statusMsg(snap)
	}
}

func waitOutcome(ch <-chan preload.Outcome) tea.Cmd {
	return func() tea.Msg {
		o, ok := <-ch
		if !ok {
			return nil
		}
		return outcomeMsg(o)
	}
}

// View renders the full dashboard frame.
func (m Dashboard) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("preheat"))
	b.WriteString("  ")
	b.WriteString(m.tabStrip())
	b.WriteString("\n\n")

	b.WriteString(m.body())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(m.styles.Error.Render(m.err.Error()))
		b.WriteString("\n")
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	b.WriteString(m.statusbar.Render(m.snap, width))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("tab/shift+tab switch · r refresh · w warm all · q quit"))
	return b.String()
}

func (m Dashboard) tabStrip() string {
	if len(m.views) == 0 {
		return m.styles.Muted.Render("no views configured")
	}

	parts := make([]string, 0, len(m.views))
	for i, v := range m.views {
		label := m.stateMarker(v.Name) + " " + v.Name
		if i == m.active {
			parts = append(parts, m.styles.TabActive.Render(label))
		} else {
			parts = append(parts, m.styles.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Dashboard) stateMarker(name string) string {
	bind, ok := m.session.Binding(name)
	if !ok {
		return m.styles.Muted.Render("○")
	}
	switch bind.State {
	case viewstate.StateHot:
		return m.styles.Online.Render("●")
	case viewstate.StateWarm:
		return m.styles.Degraded.Render("◐")
	default:
		return m.styles.Muted.Render("○")
	}
}

func (m Dashboard) body() string {
	if len(m.views) == 0 {
		return m.styles.Muted.Render("add views to the config file to get started")
	}

	var b strings.Builder
	if m.warming {
		b.WriteString(m.warm.View())
		b.WriteString("\n\n")
	}

	v := m.views[m.active]
	d := m.viewData(v.Name)

	switch {
	case d.err != nil:
		b.WriteString(m.styles.Error.Render(d.err.Error()))
	case d.data == nil:
		b.WriteString(m.skeleton.View())
		if d.loading {
			b.WriteString("\n")
			b.WriteString(m.loading.View())
		}
	default:
		b.WriteString(m.payloadTable(d.data))

		var notes []string
		if d.stale {
			notes = append(notes, m.styles.Stale.Render("stale copy"))
		}
		if d.fromCache {
			notes = append(notes, m.styles.Muted.Render("cached"))
		}
		if d.loading {
			notes = append(notes, m.loading.View())
		}
		if len(notes) > 0 {
			b.WriteString("\n")
			b.WriteString(strings.Join(notes, "  "))
		}
	}
	return b.String()
}

func (m Dashboard) payloadTable(data []byte) string {
	rows := payloadRows(gjson.ParseBytes(data))
	if len(rows) == 0 {
		return m.styles.Muted.Render("empty payload")
	}

	headers := payloadHeaders(rows[0])
	if len(headers) == 0 {
		return m.styles.Muted.Render("no scalar fields to show")
	}

	cells := make([][]string, 0, len(rows))
	for i, row := range rows {
		if i == maxBodyRows {
			break
		}
		line := make([]string, 0, len(headers))
		for _, h := range headers {
			line = append(line, truncate(output.InterfaceToString(row.Get(h).Value(), "-"), maxCellWidth))
		}
		cells = append(cells, line)
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return m.styles.Header.PaddingRight(2)
			}
			return m.styles.Body.PaddingRight(2)
		}).
		Headers(headers...).
		Rows(cells...)

	s := t.Render()
	if len(rows) > maxBodyRows {
		s += "\n" + m.styles.Muted.Render(fmt.Sprintf("and %d more rows", len(rows)-maxBodyRows))
	}
	return s
}

// payloadRows finds the row collection in an arbitrary JSON payload: a top
// level array, a conventional wrapper array, or the object itself as a
// single row.
func payloadRows(root gjson.Result) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	for _, key := range []string{"views", "data", "items", "results"} {
		if arr := root.Get(key); arr.Exists() && arr.IsArray() {
			return arr.Array()
		}
	}
	if root.IsObject() {
		return []gjson.Result{root}
	}
	return nil
}

// payloadHeaders returns up to maxBodyColumns scalar keys of the first row,
// name and id sorted to the front.
func payloadHeaders(first gjson.Result) []string {
	var keys []string
	first.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.JSON {
			keys = append(keys, key.String())
		}
		return true
	})

	sort.Slice(keys, func(i, j int) bool {
		ri, rj := headerRank(keys[i]), headerRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	if len(keys) > maxBodyColumns {
		keys = keys[:maxBodyColumns]
	}
	return keys
}

func headerRank(key string) int {
	switch key {
	case "name":
		return 0
	case "id":
		return 1
	default:
		return 2 //nolint:mnd
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
