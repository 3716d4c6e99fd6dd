// Package ws держит живые websocket-соединения уведомлений.
//
// Hub — реестр групп соединений по пользователю; Client — одно соединение
// со своей очередью отправки; Handler принимает подключения на эндпоинте.
package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"blog-backend/internal/domain"
	"blog-backend/internal/infra/metrics"
)

// Hub реализует domain.Broadcaster в пределах одного процесса.
//
// Набор соединений пользователя хранится неизменяемым срезом и заменяется
// целиком при Join/Leave, поэтому Broadcast видит либо старый, либо новый
// набор. Hub не управляет жизнью соединений: Leave вызывает владелец.
type Hub struct {
	log zerolog.Logger

	mu     sync.RWMutex
	groups map[int64][]domain.ConnHandle

	done      chan struct{}
	closeOnce sync.Once
}

var _ domain.Broadcaster = (*Hub)(nil)

// NewHub создаёт пустой реестр.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:    logger,
		groups: make(map[int64][]domain.ConnHandle),
		done:   make(chan struct{}),
	}
}

// Join регистрирует соединение пользователя. Повторный Join того же соединения ничего не меняет.
func (h *Hub) Join(userID int64, handle domain.ConnHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isClosed() {
		return
	}
	current := h.groups[userID]
	for _, existing := range current {
		if existing == handle {
			return
		}
	}
	next := make([]domain.ConnHandle, len(current), len(current)+1)
	copy(next, current)
	h.groups[userID] = append(next, handle)
	h.log.Debug().Int64("user_id", userID).Int("connections", len(next)+1).Msg("hub: соединение добавлено")
}

// Leave убирает соединение. Для неизвестного соединения или пользователя ничего не делает.
func (h *Hub) Leave(userID int64, handle domain.ConnHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.groups[userID]
	idx := -1
	for i, existing := range current {
		if existing == handle {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if len(current) == 1 {
		delete(h.groups, userID)
	} else {
		next := make([]domain.ConnHandle, 0, len(current)-1)
		next = append(next, current[:idx]...)
		next = append(next, current[idx+1:]...)
		h.groups[userID] = next
	}
	h.log.Debug().Int64("user_id", userID).Int("connections", len(current)-1).Msg("hub: соединение удалено")
}

// Broadcast ставит payload в очередь каждого соединения пользователя.
// Ошибка одного соединения логируется и не мешает остальным.
func (h *Hub) Broadcast(ctx context.Context, userID int64, payload []byte) int {
	h.mu.RLock()
	handles := h.groups[userID]
	h.mu.RUnlock()

	queued := 0
	for _, handle := range handles {
		if ctx.Err() != nil {
			break
		}
		err := handle.Send(payload)
		metrics.ObservePush(err)
		if err != nil {
			h.log.Warn().Err(err).Int64("user_id", userID).Msg("hub: не удалось отправить уведомление")
			continue
		}
		queued++
	}
	return queued
}

// Connections возвращает число живых соединений пользователя.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}

// Done закрывается при остановке реестра; соединения по нему завершаются.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Close останавливает приём новых соединений, очищает группы и сигналит
// открытым соединениям закрыться. Последующий Leave ничего не делает.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		close(h.done)
		h.groups = make(map[int64][]domain.ConnHandle)
		h.mu.Unlock()
		h.log.Info().Msg("hub: остановлен")
	})
}

func (h *Hub) isClosed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
