// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable UI components for the lgchat TUI.

Header (header.go) - Title bar with the backend, the signed-in user and the
current session.

StatusBar (statusbar.go) - Bottom bar with the run state of the chat and the
key shortcuts that apply to the current view.

Spinner (spinner.go) - ASCII spinner with an elapsed-time display, shown while
waiting for the first chunk of a reply.

All components take a *styles.Theme and render with View:

	header := components.NewHeader(theme)
	header.SetWidth(80)
	header.Session = "Research"
	view := header.View()
*/
package components
