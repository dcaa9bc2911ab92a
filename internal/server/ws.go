package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/TheShahML/Intelligent-Portfolio-Optimizer/internal/services"
)

const wsWriteTimeout = 10 * time.Second

// progressFrame streams per-period completion to the client while a run is
// in flight.
type progressFrame struct {
	Type  string `json:"type"` // "progress"
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

type resultFrame struct {
	Type   string              `json:"type"` // "result"
	Output *services.RunOutput `json:"output"`
}

type errorFrame struct {
	Type  string `json:"type"` // "error"
	Error string `json:"error"`
}

// handleRunBacktestWS upgrades to a websocket, reads one run request and
// streams progress frames followed by the final result. The socket closes
// after a single run; reconnect to start another.
func (s *Server) handleRunBacktestWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from the dev frontend origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	ctx := r.Context()

	var req runRequest
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = wsjson.Read(readCtx, conn, &req)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected a run request")
		return
	}

	// Progress frames come from engine worker goroutines; wsjson.Write is
	// safe for one concurrent writer, so frames are funneled through a
	// channel drained by this handler goroutine.
	frames := make(chan progressFrame, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range frames {
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	output, runErr := s.runService.Execute(req.toConfig(), func(completed, total int) {
		select {
		case frames <- progressFrame{Type: "progress", Done: completed, Total: total}:
		default:
			// Slow consumer: drop the frame, the next one carries fresher state.
		}
	})
	close(frames)
	<-done

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	if runErr != nil {
		_ = wsjson.Write(writeCtx, conn, errorFrame{Type: "error", Error: runErr.Error()})
		conn.Close(websocket.StatusNormalClosure, "run failed")
		return
	}

	if err := wsjson.Write(writeCtx, conn, resultFrame{Type: "result", Output: output}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to deliver run result over websocket")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "run complete")
}
