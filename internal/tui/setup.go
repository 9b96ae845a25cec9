// ABOUTME: Interactive TUI wizard for choosing and checking the embedding backend.
// ABOUTME: 4-step bubbletea model collecting provider, base URL, model, and API key.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/pagemem/internal/embeddings"
)

// DefaultProvider is used when the provider input is left empty.
const DefaultProvider = "ollama"

// Providers lists the accepted provider names.
var Providers = []string{"ollama", "local", "openai", "google"}

// Step represents the current wizard step.
type Step int

const (
	StepProvider Step = iota
	StepBaseURL
	StepModel
	StepAPIKey
	StepValidating
	StepDone
	StepFailed
)

const inputCount = 4

// validationResultMsg carries the result of an async validation attempt.
type validationResultMsg struct {
	err error
}

// ValidateFn is the function signature for backend validation.
type ValidateFn func(ctx context.Context, s embeddings.Settings) error

// cancelHolder shares a cancel function across bubbletea model copies.
// This MUST be stored as a pointer field on SetupModel so that value-receiver
// methods (required by tea.Model) can store the cancel func and have it
// visible to all copies of the model.
type cancelHolder struct {
	cancel context.CancelFunc
}

// SetupModel is the bubbletea model for the setup wizard.
type SetupModel struct {
	step          Step
	inputs        [inputCount]textinput.Model
	spinner       spinner.Model
	validateFn    ValidateFn
	cancelCtx     *cancelHolder
	validationErr error
	inputErr      string
	quitting      bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	brandStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// NewSetupModel creates a new setup wizard model, pre-filling with existing config values.
func NewSetupModel(s embeddings.Settings) SetupModel {
	providerInput := textinput.New()
	providerInput.Placeholder = DefaultProvider
	providerInput.Focus()
	providerInput.Width = 50
	providerInput.SetValue(s.Provider)

	urlInput := textinput.New()
	urlInput.Placeholder = "provider default"
	urlInput.Width = 50
	urlInput.SetValue(s.BaseURL)

	modelInput := textinput.New()
	modelInput.Placeholder = "provider default"
	modelInput.Width = 50
	modelInput.SetValue(s.Model)

	keyInput := textinput.New()
	keyInput.Placeholder = "your-api-key"
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.Width = 50
	keyInput.SetValue(s.APIKey)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return SetupModel{
		step:       StepProvider,
		inputs:     [inputCount]textinput.Model{providerInput, urlInput, modelInput, keyInput},
		spinner:    sp,
		validateFn: ValidateConnection,
		cancelCtx:  &cancelHolder{},
	}
}

// Init implements tea.Model.
func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			if m.cancelCtx.cancel != nil {
				m.cancelCtx.cancel()
			}
			return m, tea.Quit
		}

		switch m.step {
		case StepProvider, StepBaseURL, StepModel, StepAPIKey:
			return m.updateInput(msg)
		case StepFailed:
			return m.updateFailed(msg)
		}

	case validationResultMsg:
		m.cancelCtx.cancel = nil
		if msg.err == nil {
			m.step = StepDone
			return m, tea.Quit
		}
		m.validationErr = msg.err
		m.step = StepFailed
		return m, nil

	case spinner.TickMsg:
		if m.step == StepValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m SetupModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		idx := int(m.step)
		m.inputErr = ""

		switch m.step {
		case StepProvider:
			p := strings.ToLower(strings.TrimSpace(m.inputs[0].Value()))
			if p == "" {
				p = DefaultProvider
			}
			if !isProvider(p) {
				m.inputErr = fmt.Sprintf("unknown provider %q (choose %s)", p, strings.Join(Providers, ", "))
				return m, nil
			}
			m.inputs[0].SetValue(p)
		case StepBaseURL:
			m.inputs[1].SetValue(NormalizeBaseURL(m.provider(), m.inputs[1].Value()))
		case StepModel:
			m.inputs[2].SetValue(strings.TrimSpace(m.inputs[2].Value()))
		case StepAPIKey:
			// Hosted providers need a key; local servers don't.
			if m.needsAPIKey() && m.inputs[3].Value() == "" {
				return m, nil
			}
		}

		m.inputs[idx].Blur()

		// The local backend has nothing else to configure.
		if m.step == StepProvider && m.provider() == "local" {
			m.step = StepValidating
			return m, tea.Batch(m.startValidation(), m.spinner.Tick)
		}

		if m.step == StepAPIKey {
			m.step = StepValidating
			return m, tea.Batch(m.startValidation(), m.spinner.Tick)
		}

		m.step++
		m.inputs[int(m.step)].Focus()
		return m, textinput.Blink
	}

	// Forward to the active input
	idx := int(m.step)
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m SetupModel) updateFailed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyRunes && len(msg.Runes) > 0 {
		switch msg.Runes[0] {
		case 'r':
			m.step = StepValidating
			m.validationErr = nil
			return m, tea.Batch(m.startValidation(), m.spinner.Tick)
		case 's':
			m.step = StepDone
			return m, tea.Quit
		case 'q':
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m SetupModel) startValidation() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCtx.cancel = cancel
	settings := m.Result()
	fn := m.validateFn
	return func() tea.Msg {
		return validationResultMsg{err: fn(ctx, settings)}
	}
}

func (m SetupModel) provider() string {
	return m.inputs[0].Value()
}

func (m SetupModel) needsAPIKey() bool {
	p := m.provider()
	return p == "openai" || p == "google"
}

func isProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// View implements tea.Model.
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   PAGEMEM"))
	b.WriteString(titleStyle.Render(" - Setup"))
	b.WriteString("\n\n")
	b.WriteString("Choose the embedding model used to compare page summaries.\n\n")

	switch m.step {
	case StepProvider:
		b.WriteString(stepStyle.Render("Step 1 of 4: Provider"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("(%s; press Enter for %s)", strings.Join(Providers, ", "), DefaultProvider)))
		b.WriteString("\n")
		b.WriteString(m.inputs[0].View())
		b.WriteString("\n")
		if m.inputErr != "" {
			b.WriteString(errorStyle.Render(m.inputErr))
			b.WriteString("\n")
		}

	case StepBaseURL:
		b.WriteString(fmt.Sprintf("  Provider: %s\n\n", m.provider()))
		b.WriteString(stepStyle.Render("Step 2 of 4: Base URL"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[1].View())
		b.WriteString("\n")

	case StepModel:
		b.WriteString(m.summary(1))
		b.WriteString(stepStyle.Render("Step 3 of 4: Model"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[2].View())
		b.WriteString("\n")

	case StepAPIKey:
		b.WriteString(m.summary(2))
		b.WriteString(stepStyle.Render("Step 4 of 4: API Key"))
		b.WriteString("\n")
		if !m.needsAPIKey() {
			b.WriteString(promptStyle.Render("(optional for this provider)"))
			b.WriteString("\n")
		}
		b.WriteString(m.inputs[3].View())
		b.WriteString("\n")

	case StepValidating:
		b.WriteString(m.summary(3))
		b.WriteString(m.spinner.View())
		b.WriteString(" Validating connection...")
		b.WriteString("\n")

	case StepDone:
		b.WriteString(successStyle.Render("✓ Connected!"))
		b.WriteString("\n")

	case StepFailed:
		errMsg := "unknown error"
		if m.validationErr != nil {
			errMsg = m.validationErr.Error()
		}
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Validation failed: %s", errMsg)))
		b.WriteString("\n\n")
		b.WriteString(promptStyle.Render("[r]etry  [s]ave anyway  [q]uit"))
		b.WriteString("\n")
	}

	return b.String()
}

// summary renders the values entered for the first n inputs after the provider.
func (m SetupModel) summary(n int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  Provider: %s\n", m.provider()))
	if n >= 1 && m.provider() != "local" {
		b.WriteString(fmt.Sprintf("  Base URL: %s\n", orDefault(m.inputs[1].Value())))
	}
	if n >= 2 && m.provider() != "local" {
		b.WriteString(fmt.Sprintf("  Model: %s\n", orDefault(m.inputs[2].Value())))
	}
	if n >= 3 && m.inputs[3].Value() != "" {
		b.WriteString(fmt.Sprintf("  API Key: %s\n", strings.Repeat("*", len(m.inputs[3].Value()))))
	}
	b.WriteString("\n")
	return b.String()
}

func orDefault(v string) string {
	if v == "" {
		return "(default)"
	}
	return v
}

// Result returns the entered values as backend settings.
func (m SetupModel) Result() embeddings.Settings {
	return embeddings.Settings{
		Provider: m.inputs[0].Value(),
		BaseURL:  m.inputs[1].Value(),
		Model:    m.inputs[2].Value(),
		APIKey:   m.inputs[3].Value(),
	}
}

// ShouldSave returns true if the wizard completed (via validation success or
// "save anyway") and the user did not cancel with Ctrl+C, Escape, or 'q'.
func (m SetupModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
