package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// keepAliveInterval spaces SSE comments so proxies keep the stream open.
const keepAliveInterval = 15 * time.Second

// handleRunEvents streams execution progress as server-sent events.
//
// Every message carries the run view's progress; the stream ends with a
// "complete" event holding the final run view. A run that is not executing
// gets the complete event at once.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	c, ok := s.run(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would cut a long execution short.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	updates, stop := c.Subscribe()
	defer stop()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case p, ok := <-updates:
			if !ok {
				_ = send("complete", newRunView(c, s.cfg.Upload.PreviewRows))
				return
			}
			if err := send("progress", p); err != nil {
				logging.FromContext(r.Context()).Debug("sse write failed", "error", err)
				return
			}

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
