package recipeassistant

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TurnLogger records the stages a chat turn passed through.
type TurnLogger interface {
	LogStage(stage StageLog) error
}

// NewTurnLogFilePath returns a file path tagged with the LLM backend so logs from different models are easy to tell apart.
func NewTurnLogFilePath(backend string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.ReplaceAll(strings.ToLower(backend), ":", "_"),
	)
}

// StageLog is one pipeline stage of one turn.
type StageLog struct {
	TurnID        string        `json:"turn_id"`
	Stage         string        `json:"stage"`
	Timestamp     time.Time     `json:"timestamp"`
	Duration      time.Duration `json:"duration_ns"`
	NeedsSearch   bool          `json:"needs_search,omitempty"`
	SearchResults int           `json:"search_results,omitempty"`
	Provenance    *Provenance   `json:"provenance,omitempty"`
	AnswerChars   int           `json:"answer_chars,omitempty"`
	Trimmed       bool          `json:"trimmed,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// FileTurnLogger accumulates stages and writes them on Flush.
type FileTurnLogger struct {
	mu     sync.Mutex
	stages []StageLog
	writer io.Writer
}

func NewFileTurnLogger(writer io.Writer) *FileTurnLogger {
	return &FileTurnLogger{
		stages: make([]StageLog, 0),
		writer: writer,
	}
}

func (l *FileTurnLogger) LogStage(stage StageLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, stage)
	return nil
}

// Flush writes all accumulated stages to the writer and clears the buffer.
func (l *FileTurnLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"turn_log": map[string]any{
			"timestamp": time.Now(),
			"stages":    l.stages,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal turn log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write turn log: %w", err)
	}

	l.stages = l.stages[:0]
	return nil
}

type NoOpTurnLogger struct{}

func NewNoOpTurnLogger() *NoOpTurnLogger {
	return &NoOpTurnLogger{}
}

func (NoOpTurnLogger) LogStage(StageLog) error {
	return nil
}

// StdoutTurnLogger writes each stage as a JSON line (for Lambda/CloudWatch).
type StdoutTurnLogger struct {
	out io.Writer
}

func NewStdoutTurnLogger() *StdoutTurnLogger {
	return &StdoutTurnLogger{out: os.Stdout}
}

func (l *StdoutTurnLogger) LogStage(stage StageLog) error {
	data, err := json.Marshal(stage)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
