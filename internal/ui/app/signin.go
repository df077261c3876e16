// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-chat/internal/auth"
)

// signInForm collects the credentials the authenticator asks for.
type signInForm struct {
	prompts []auth.Prompt
	inputs  []textinput.Model
	focus   int
	err     string
	busy    bool
}

func newSignInForm(prompts []auth.Prompt) signInForm {
	f := signInForm{prompts: prompts}
	for i, p := range prompts {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = strings.ToLower(p.Label)
		in.CharLimit = 4096
		in.Width = 32
		if p.Secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '*'
		}
		if i == 0 {
			in.Focus()
		}
		f.inputs = append(f.inputs, in)
	}
	return f
}

// credentials builds Credentials from the current input values.
func (f *signInForm) credentials() auth.Credentials {
	var c auth.Credentials
	for i, p := range f.prompts {
		c.Set(p.Field, strings.TrimSpace(f.inputs[i].Value()))
	}
	return c
}

func (f *signInForm) setFocus(i int) {
	if len(f.inputs) == 0 {
		return
	}
	if i < 0 {
		i = len(f.inputs) - 1
	}
	if i >= len(f.inputs) {
		i = 0
	}
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	f.focus = i
}

// update handles a key on the sign-in screen. It reports true when the
// form should be submitted.
func (f *signInForm) update(msg tea.KeyMsg) (bool, tea.Cmd) {
	if f.busy {
		return false, nil
	}
	switch msg.String() {
	case "enter":
		if len(f.inputs) == 0 || f.focus == len(f.inputs)-1 {
			return true, nil
		}
		f.setFocus(f.focus + 1)
		return false, nil
	case "tab", "down":
		f.setFocus(f.focus + 1)
		return false, nil
	case "shift+tab", "up":
		f.setFocus(f.focus - 1)
		return false, nil
	}
	if len(f.inputs) == 0 {
		return false, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return false, cmd
}

// signInError turns a login failure into a line for the form.
func signInError(err error) string {
	switch {
	case errors.Is(err, auth.ErrOTPRequired):
		return "A one-time code is required."
	case errors.Is(err, auth.ErrInvalidOTP):
		return "That one-time code is not valid."
	case errors.Is(err, auth.ErrTooManyAttempts):
		return "Too many attempts. Wait a moment and try again."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials."
	default:
		return "Sign-in failed: " + err.Error()
	}
}
