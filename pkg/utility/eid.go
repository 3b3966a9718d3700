package utility

import (
	"sync"

	"github.com/google/uuid"
)

// ExecutionID identifies one backtest run. Every event a simulator posts carries it so that
// reports built from several runs can be told apart.
type ExecutionID = uuid.UUID

var (
	executionID   ExecutionID
	executionIDMu sync.RWMutex
)

func init() {
	executionID = uuid.Must(uuid.NewV7())
}

func GetExecutionID() ExecutionID {
	executionIDMu.RLock()
	defer executionIDMu.RUnlock()
	return executionID
}

// NewExecution starts a new run id; subsequent GetExecutionID calls return it.
func NewExecution() ExecutionID {
	id := uuid.Must(uuid.NewV7())

	executionIDMu.Lock()
	executionID = id
	executionIDMu.Unlock()

	return id
}

func ParseExecutionID(s string) (ExecutionID, error) {
	return uuid.Parse(s)
}
