// Package stream re-chunks a finished answer for incremental delivery.
package stream

import (
	"context"
)

const (
	DefaultChunkSize = 200

	EventMessage = "message"
	EventEnd     = "end"
	EndData      = "done"
)

// Chunk splits answer into consecutive slices of at most size characters.
// Concatenating the chunks gives back answer.
func Chunk(answer string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	r := []rune(answer)
	chunks := make([]string, 0, (len(r)+size-1)/size)
	for start := 0; start < len(r); start += size {
		end := min(start+size, len(r))
		chunks = append(chunks, string(r[start:end]))
	}
	return chunks
}

// Emitter delivers one event to the caller.
type Emitter func(event, data string) error

// Deliver emits every chunk as a message event and then a single end event.
// It stops early if ctx is cancelled or emit fails; in that case no end event
// is sent.
func Deliver(ctx context.Context, answer string, size int, emit Emitter) error {
	for _, c := range Chunk(answer, size) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(EventMessage, c); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return emit(EventEnd, EndData)
}
