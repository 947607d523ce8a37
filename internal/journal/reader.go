package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Event is one parsed journal line; exactly one typed field is set.
type Event struct {
	Type       string
	Session    *Session
	Simulation *Simulation
	Position   *Position
	Watchlist  *Watchlist
}

// Read parses the journal at path. A missing file reads as empty.
func Read(path string) ([]Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads JSONL events from r. Unknown event types are skipped.
func Parse(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		var typeOnly struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(line, &typeOnly); err != nil {
			return nil, fmt.Errorf("failed to parse type field at line %d: %w", lineNum, err)
		}

		event := Event{Type: typeOnly.Type}
		var target any
		switch typeOnly.Type {
		case TypeSession:
			event.Session = &Session{}
			target = event.Session
		case TypeSimulation:
			event.Simulation = &Simulation{}
			target = event.Simulation
		case TypePosition:
			event.Position = &Position{}
			target = event.Position
		case TypeWatchlist:
			event.Watchlist = &Watchlist{}
			target = event.Watchlist
		default:
			continue
		}
		if err := json.Unmarshal(line, target); err != nil {
			return nil, fmt.Errorf("failed to parse %s at line %d: %w", typeOnly.Type, lineNum, err)
		}

		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading journal file: %w", err)
	}

	return events, nil
}

// Tail returns the last n events, all of them when n <= 0.
func Tail(events []Event, n int) []Event {
	if n <= 0 || n >= len(events) {
		return events
	}
	return events[len(events)-n:]
}
