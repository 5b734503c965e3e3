package cmd

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/docrag/engine/internal/watcher"
)

func TestWatchModelAppliesStats(t *testing.T) {
	m := newWatchModel(context.Background(), nil, "/tmp/policy-manuals")

	updated, cmd := m.Update(watchStatsMsg{state: watcher.StateWatching, totalDocuments: 3, totalChunks: 7})
	wm := updated.(watchModel)

	assert.Nil(t, cmd)
	assert.Equal(t, watcher.StateWatching, wm.state)
	assert.Equal(t, 3, wm.totalDocuments)
	assert.Equal(t, 7, wm.totalChunks)
	assert.Contains(t, wm.View(), "documents: 3")
}

func TestWatchModelRecordsError(t *testing.T) {
	m := newWatchModel(context.Background(), nil, "/tmp/policy-manuals")

	updated, _ := m.Update(watchStatsMsg{err: errors.New("boom")})
	wm := updated.(watchModel)

	assert.Error(t, wm.lastErr)
	assert.Contains(t, wm.View(), "error: boom")
}

func TestWatchModelQuitsOnQ(t *testing.T) {
	m := newWatchModel(context.Background(), nil, "/tmp/policy-manuals")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
}

func TestWatchModelForwardsSpinnerTick(t *testing.T) {
	m := newWatchModel(context.Background(), nil, "/tmp/policy-manuals")
	before := m.spinner.View()

	updated, cmd := m.Update(m.spinner.Tick())
	wm := updated.(watchModel)

	assert.NotNil(t, cmd, "spinner.Update should return a follow-up tick command")
	assert.NotEqual(t, before, wm.spinner.View(), "spinner frame should advance on tick")
}
