// Package ui renders styled terminal output for the insights CLI with lipgloss.
//
// [ProviderTable] shows which OAuth providers are configured and [SessionTable] lists stored sessions.
// Colors come from a single [Palette]; lipgloss drops them automatically when output is not a terminal.
package ui
