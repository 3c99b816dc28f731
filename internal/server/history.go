package server

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/bidroom/internal/fileutil"
)

// MatchRecord is the on-disk form of a finished match.
type MatchRecord struct {
	RoomID       string            `json:"roomId"`
	FinishedAt   time.Time         `json:"finishedAt"`
	Rounds       int               `json:"rounds"`
	WinnerID     string            `json:"winnerId,omitempty"`
	WinnerName   string            `json:"winnerName,omitempty"`
	RoundResults []RoundResultData `json:"roundResults"`
	Players      []PlayerState     `json:"players"`
}

// HistoryRecorder implements RoomMonitor and writes one JSON file per
// finished match to its directory. Files are written by a background
// goroutine so a slow disk never holds up the room that finished.
type HistoryRecorder struct {
	NullRoomMonitor

	dir    string
	clock  quartz.Clock
	logger *log.Logger

	mu      sync.Mutex
	closed  bool
	records chan MatchRecord
	wg      sync.WaitGroup
}

// NewHistoryRecorder creates and starts a recorder that writes to dir.
// Shutdown must be called to flush pending records.
func NewHistoryRecorder(dir string, clock quartz.Clock, logger *log.Logger) *HistoryRecorder {
	if clock == nil {
		clock = quartz.NewReal()
	}
	h := &HistoryRecorder{
		dir:     dir,
		clock:   clock,
		logger:  logger.WithPrefix("history"),
		records: make(chan MatchRecord, 64),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

// Shutdown writes any queued records and stops the writer. Records that
// arrive afterwards are dropped.
func (h *HistoryRecorder) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.records)
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *HistoryRecorder) run() {
	defer h.wg.Done()
	for record := range h.records {
		h.write(record)
	}
}

func (h *HistoryRecorder) write(record MatchRecord) {
	path := h.Path(record.RoomID)
	if err := fileutil.WriteJSONAtomic(path, record); err != nil {
		h.logger.Error("Failed to write match history", "room", record.RoomID, "error", err)
		return
	}
	h.logger.Debug("Wrote match history", "room", record.RoomID, "path", path)
}

// Path returns the file a room's match is written to
func (h *HistoryRecorder) Path(roomID string) string {
	return filepath.Join(h.dir, roomID+".json")
}

// OnGameEnded queues the match record for writing. It only blocks when the
// queue is full.
func (h *HistoryRecorder) OnGameEnded(report GameReport) {
	record := MatchRecord{
		RoomID:       report.RoomID,
		FinishedAt:   h.clock.Now("HistoryRecorder", "OnGameEnded").UTC(),
		Rounds:       report.Rounds,
		RoundResults: RoundResultsFromGame(report.Result.RoundResults),
		Players:      PlayerStatesFromGame(report.Result.Players),
	}
	if report.Result.HasWinner {
		record.WinnerID = report.Result.Winner.ID
		record.WinnerName = report.Result.Winner.Name
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.logger.Warn("Dropping match history after shutdown", "room", report.RoomID)
		return
	}
	h.records <- record
}

var _ RoomMonitor = (*HistoryRecorder)(nil)
