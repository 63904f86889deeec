package stream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		size   int
		want   []string
	}{
		{name: "empty", answer: "", size: 200, want: []string{}},
		{name: "shorter than size", answer: "hello", size: 200, want: []string{"hello"}},
		{name: "exact multiple", answer: "abcdef", size: 3, want: []string{"abc", "def"}},
		{name: "remainder", answer: "abcdefg", size: 3, want: []string{"abc", "def", "g"}},
		{name: "multibyte", answer: "ééééé", size: 2, want: []string{"éé", "éé", "é"}},
		{name: "default size", answer: strings.Repeat("x", 450), size: 0, want: []string{
			strings.Repeat("x", 200), strings.Repeat("x", 200), strings.Repeat("x", 50),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.answer, tt.size)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.answer, strings.Join(got, ""))
		})
	}
}

type event struct{ name, data string }

func TestDeliver(t *testing.T) {
	var events []event
	err := Deliver(context.Background(), strings.Repeat("y", 450), 200, func(name, data string) error {
		events = append(events, event{name, data})
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	for _, e := range events[:3] {
		assert.Equal(t, EventMessage, e.name)
	}
	assert.Len(t, events[2].data, 50)
	assert.Equal(t, event{EventEnd, EndData}, events[3])
}

func TestDeliver_EmptyAnswerStillEnds(t *testing.T) {
	var events []event
	require.NoError(t, Deliver(context.Background(), "", 200, func(name, data string) error {
		events = append(events, event{name, data})
		return nil
	}))
	assert.Equal(t, []event{{EventEnd, EndData}}, events)
}

func TestDeliver_StopsOnError(t *testing.T) {
	errGone := errors.New("client gone")
	calls := 0
	err := Deliver(context.Background(), strings.Repeat("z", 600), 200, func(name, data string) error {
		calls++
		if calls == 2 {
			return errGone
		}
		return nil
	})
	assert.ErrorIs(t, err, errGone)
	assert.Equal(t, 2, calls)
}

func TestDeliver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var names []string
	err := Deliver(ctx, strings.Repeat("z", 600), 200, func(name, data string) error {
		names = append(names, name)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{EventMessage}, names)
}
