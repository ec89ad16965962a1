package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/monistake/monistake-backend/internal/store"
	"go.uber.org/zap"
)

const heartbeatPeriod = 30 * time.Second

type SSEHandler struct {
	cache  *store.Cache
	logger *zap.SugaredLogger
}

func NewSSEHandler(cache *store.Cache, logger *zap.SugaredLogger) *SSEHandler {
	return &SSEHandler{
		cache:  cache,
		logger: logger,
	}
}

// HandleSSE streams updates. Query params: topics=pool,user,tx and address=0x...
func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	address := r.URL.Query().Get("address")
	if address != "" && !common.IsHexAddress(address) {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	topics := topicsFor(r.URL.Query().Get("topics"), address)

	h.logger.Debugw("SSE connection established", "topics", topics, "address", address)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := h.cache.SubscribeUpdates(ctx)
	h.stream(ctx, w, flusher, topics, updates)
}

// topicsFor maps topic names to concrete topics; wallet topics need an address
func topicsFor(param, address string) map[string]bool {
	names := []string{store.TopicPool}
	if param != "" {
		names = strings.Split(param, ",")
	} else if address != "" {
		names = append(names, store.TopicUser, store.TopicTx)
	}

	topics := make(map[string]bool)
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case store.TopicPool:
			topics[store.TopicPool] = true
		case store.TopicUser:
			if address != "" {
				topics[store.UserTopic(store.TopicUser, address)] = true
			}
		case store.TopicTx:
			if address != "" {
				topics[store.UserTopic(store.TopicTx, address)] = true
			}
		}
	}
	return topics
}

func eventType(topic string) string {
	kind, _, _ := strings.Cut(topic, ":")
	switch kind {
	case store.TopicPool, store.TopicUser, store.TopicTx:
		return kind + "_update"
	default:
		return "update"
	}
}

func (h *SSEHandler) stream(ctx context.Context, w http.ResponseWriter, f http.Flusher, topics map[string]bool, updates <-chan store.Update) {
	h.sendEvent(w, f, "connected", "0", nil)

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, f, "heartbeat", "ping", map[string]int64{
				"timestamp": time.Now().Unix(),
			})

		case u, ok := <-updates:
			if !ok {
				return
			}
			if !topics[u.Topic] {
				continue
			}
			h.sendEvent(w, f, eventType(u.Topic), fmt.Sprintf("%s-%d", u.Topic, u.Timestamp), u.Data)
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, f http.Flusher, event, id string, data interface{}) {
	payload := []byte("{}")
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		payload = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			h.logger.Errorw("Failed to marshal SSE data", "error", err)
			return
		}
		payload = raw
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "id: %s\n", id)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	f.Flush()
}
