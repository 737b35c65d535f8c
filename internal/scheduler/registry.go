package scheduler

import (
	"sort"
	"sync"
)

// Registry - потокобезопасное отображение имени задачи на ее триггер.
// Для каждого имени хранится не более одного живого триггера.
//
// Порядок захвата блокировок: реестр, затем триггер. Путь срабатывания
// реестр не трогает.
type Registry struct {
	mu       sync.RWMutex
	triggers map[string]*Trigger
}

// NewRegistry создает пустой реестр.
func NewRegistry() *Registry {
	return &Registry{triggers: make(map[string]*Trigger)}
}

// Put добавляет триггер. Возвращает *DuplicateJobError, если имя уже занято живым триггером.
func (r *Registry) Put(name string, t *Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&RegistryTx{r: r}).Put(name, t)
}

// Get возвращает триггер по имени.
func (r *Registry) Get(name string) (*Trigger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triggers[name]
	return t, ok
}

// Remove удаляет запись. Отсутствие имени не является ошибкой.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.triggers, name)
}

// Len возвращает число записей.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.triggers)
}

// Snapshot возвращает триггеры, отсортированные по имени.
func (r *Registry) Snapshot() []*Trigger {
	r.mu.RLock()
	out := make([]*Trigger, 0, len(r.triggers))
	for _, t := range r.triggers {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].def.Name < out[j].def.Name })
	return out
}

// Atomically выполняет fn под эксклюзивной блокировкой реестра.
// Составные операции движка (проверка, отмена, замена) видны другим
// вызывающим только целиком.
func (r *Registry) Atomically(fn func(tx *RegistryTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&RegistryTx{r: r})
}

// RegistryTx - доступ к реестру внутри Atomically. Вне fn использовать нельзя.
type RegistryTx struct {
	r *Registry
}

// Get возвращает триггер по имени.
func (tx *RegistryTx) Get(name string) (*Trigger, bool) {
	t, ok := tx.r.triggers[name]
	return t, ok
}

// Put добавляет триггер. Отмененный триггер под тем же именем перезаписывается.
func (tx *RegistryTx) Put(name string, t *Trigger) error {
	if existing, ok := tx.r.triggers[name]; ok && existing.State() != StateCancelled {
		return &DuplicateJobError{Name: name}
	}
	tx.r.triggers[name] = t
	return nil
}

// Remove удаляет запись.
func (tx *RegistryTx) Remove(name string) {
	delete(tx.r.triggers, name)
}
