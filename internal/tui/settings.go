package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/tally/internal/api"
)

// settingsMsg carries the user's settings after a load or a save.
type settingsMsg struct {
	settings *api.Settings
	saved    bool
	err      error
}

type settingsFields struct {
	theme    string
	locale   string
	currency string
}

type settingsModel struct {
	api    API
	width  int
	height int

	settings   *api.Settings
	formActive bool
	form       *huh.Form

	// Form values behind a pointer survive value copies of the model.
	fields *settingsFields
}

func newSettingsModel(a API) settingsModel {
	return settingsModel{api: a, fields: &settingsFields{}}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		settings, err := s.api.GetSettings(ctx)
		return settingsMsg{settings: settings, err: err}
	}
}

// saveSettingsCmd sends only the fields that differ from current.
func saveSettingsCmd(a API, current api.Settings, f settingsFields) tea.Cmd {
	var req api.SettingsUpdateRequest
	if f.theme != current.Theme {
		req.Theme = &f.theme
	}
	if f.locale != current.Locale {
		req.Locale = &f.locale
	}
	if f.currency != current.Currency {
		req.Currency = &f.currency
	}
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		settings, err := a.UpdateSettings(ctx, req)
		return settingsMsg{settings: settings, saved: true, err: err}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(settingsMsg); ok {
		if msg.err != nil {
			return s, func() tea.Msg { return errStatus("Settings", msg.err) }
		}
		s.settings = msg.settings
		if msg.saved {
			return s, func() tea.Msg { return statusMsg{text: "Settings saved"} }
		}
		return s, nil
	}

	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			if s.settings != nil {
				return s.showForm()
			}
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	s.fields.theme = s.settings.Theme
	s.fields.locale = s.settings.Locale
	s.fields.currency = s.settings.Currency

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Theme").
				Options(
					huh.NewOption("Light", "light"),
					huh.NewOption("Dark", "dark"),
				).Value(&s.fields.theme),
			huh.NewSelect[string]().Title("Locale").
				Options(huh.NewOption("Français (fr-FR)", "fr-FR")).
				Value(&s.fields.locale),
			huh.NewSelect[string]().Title("Currency").
				Options(huh.NewOption("Euro (EUR)", "EUR")).
				Value(&s.fields.currency),
		).Title("Preferences"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		return s, saveSettingsCmd(s.api, *s.settings, *s.fields)
	}

	return s, cmd
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}
	if s.settings == nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render("Loading...")))
	}

	rows := []string{title, ""}
	for _, kv := range [][2]string{
		{"Theme", s.settings.Theme},
		{"Locale", s.settings.Locale},
		{"Currency", s.settings.Currency},
	} {
		label := lipgloss.NewStyle().Width(24).Render(kv[0])
		rows = append(rows, fmt.Sprintf("  %s %s", label, highlightStyle.Render(kv[1])))
	}
	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
