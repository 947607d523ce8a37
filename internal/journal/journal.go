package journal

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Journal is an append-only JSONL writer for client-side activity.
type Journal struct {
	f  *os.File
	mu sync.Mutex
}

// New opens (or creates) the journal file in append mode.
func New(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f}, nil
}

// Log marshals event to JSON and appends it as a single line.
func (j *Journal) Log(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err = j.f.Write(data); err != nil {
		return err
	}
	return j.f.Sync()
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Event types.

const (
	TypeSession    = "session"
	TypeSimulation = "simulation"
	TypePosition   = "position"
	TypeWatchlist  = "watchlist"
)

// Session records sign-in state changes: login, logout, expired.
type Session struct {
	Type   string `json:"type"`
	Time   string `json:"time"`
	Action string `json:"action"`
	Email  string `json:"email,omitempty"`
	API    string `json:"api"`
}

func NewSession(action, email, api string) Session {
	return Session{
		Type:   TypeSession,
		Time:   now(),
		Action: action,
		Email:  email,
		API:    api,
	}
}

// Simulation records a simulation being created or deleted.
type Simulation struct {
	Type         string `json:"type"`
	Time         string `json:"time"`
	Action       string `json:"action"`
	SimulationID string `json:"simulation_id"`
	Name         string `json:"name,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
}

func NewSimulation(action, id, name, startDate string) Simulation {
	return Simulation{
		Type:         TypeSimulation,
		Time:         now(),
		Action:       action,
		SimulationID: id,
		Name:         name,
		StartDate:    startDate,
	}
}

// Position records a position added to or deleted from a simulation.
// Quantity and Price keep the decimal text as sent.
type Position struct {
	Type          string `json:"type"`
	Time          string `json:"time"`
	Action        string `json:"action"`
	SimulationID  string `json:"simulation_id,omitempty"`
	TransactionID string `json:"transaction_id"`
	CoinID        string `json:"coin_id,omitempty"`
	Side          string `json:"side,omitempty"`
	Quantity      string `json:"quantity,omitempty"`
	Price         string `json:"price,omitempty"`
}

func NewPosition(action, simID, txID, coinID, side, quantity, price string) Position {
	return Position{
		Type:          TypePosition,
		Time:          now(),
		Action:        action,
		SimulationID:  simID,
		TransactionID: txID,
		CoinID:        coinID,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
	}
}

// Watchlist records a coin being watched or unwatched.
type Watchlist struct {
	Type   string `json:"type"`
	Time   string `json:"time"`
	Action string `json:"action"`
	CoinID string `json:"coin_id"`
	Source string `json:"source,omitempty"`
}

func NewWatchlist(action, coinID, source string) Watchlist {
	return Watchlist{
		Type:   TypeWatchlist,
		Time:   now(),
		Action: action,
		CoinID: coinID,
		Source: source,
	}
}
