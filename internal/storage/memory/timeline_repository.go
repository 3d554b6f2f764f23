package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// timelineRepositoryInMemory — журнал событий заказа в памяти.
// Append-only: события никогда не изменяются и не удаляются.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие в журнал заказа. Хронологический порядок
// поддерживается при записи, чтобы List оставался дешёвым.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	journal := append(r.events[event.OrderID], event)
	if n := len(journal); n > 1 && journal[n-1].Occurred.Before(journal[n-2].Occurred) {
		sort.SliceStable(journal, func(i, j int) bool {
			return journal[i].Occurred.Before(journal[j].Occurred)
		})
	}
	r.events[event.OrderID] = journal
	return nil
}

// List возвращает копию журнала заказа, старые события первыми.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	journal := r.events[orderID]
	result := make([]domain.TimelineEvent, len(journal))
	copy(result, journal)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
