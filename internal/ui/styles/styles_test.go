// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
	"time"
)

func TestNewTheme_Modes(t *testing.T) {
	dark := NewTheme(ModeDark)
	if !dark.IsDark || dark.GlamourStyle() != "dark" {
		t.Errorf("dark theme: IsDark=%v glamour=%s", dark.IsDark, dark.GlamourStyle())
	}

	light := NewTheme(ModeLight)
	if light.IsDark || light.GlamourStyle() != "light" {
		t.Errorf("light theme: IsDark=%v glamour=%s", light.IsDark, light.GlamourStyle())
	}

	if NewTheme("unknown") == nil {
		t.Fatal("unknown mode should fall back to a theme")
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)
	for name, rendered := range map[string]string{
		"Header":          theme.Header.Render("test"),
		"Sidebar":         theme.Sidebar.Render("test"),
		"UserBubble":      theme.UserBubble.Render("test"),
		"AssistantBubble": theme.AssistantBubble.Render("test"),
		"StreamingBubble": theme.StreamingBubble.Render("test"),
		"SignInBox":       theme.SignInBox.Render("test"),
		"StatusBar":       theme.StatusBar.Render("test"),
	} {
		if !strings.Contains(rendered, "test") {
			t.Errorf("%s style lost its content: %q", name, rendered)
		}
	}
}

func TestSidebarVisible(t *testing.T) {
	theme := NewTheme(ModeDark)
	tests := []struct {
		width int
		want  bool
	}{
		{40, false},
		{MinSidebarWidth - 1, false},
		{MinSidebarWidth, true},
		{120, true},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 40)
		if got := theme.SidebarVisible(); got != tt.want {
			t.Errorf("width %d: SidebarVisible() = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestUserAndAssistantBubblesDiffer(t *testing.T) {
	theme := NewTheme(ModeDark)
	if theme.UserBubble.GetBorderLeftForeground() == theme.AssistantBubble.GetBorderLeftForeground() {
		t.Error("user and assistant gutters should use different colours")
	}
	if theme.StreamingBubble.GetBorderLeftForeground() != Amber {
		t.Error("streaming responses should use the amber gutter")
	}
}

func TestSpinnerConfig(t *testing.T) {
	if LineSpinner.Duration() != 100*time.Millisecond {
		t.Errorf("LineSpinner.Duration() = %v", LineSpinner.Duration())
	}
	if (SpinnerConfig{}).Duration() != time.Second {
		t.Error("zero FPS should not divide by zero")
	}
	b := DotsSpinner.Bubble()
	if len(b.Frames) != len(DotsSpinner.Frames) || b.FPS != DotsSpinner.Duration() {
		t.Errorf("Bubble() = %+v", b)
	}
}
