package scheduler

import (
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser разбирает стандартные 5 полей, необязательное поле секунд
// (формат Spring CronTrigger) и дескрипторы вида @daily / @every 5m.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// reachabilityProbe - точка отсчёта для проверки, что расписание хоть раз срабатывает.
// Високосный 2000 год покрывает выражения на 29 февраля в пределах окна поиска robfig/cron.
var reachabilityProbe = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	errEmptyExpression = errors.New("empty cron expression")
	errNeverFires      = errors.New("schedule never fires")
)

// Schedule - разобранное cron-выражение. Неизменяемо и не содержит общего состояния.
type Schedule struct {
	expr string
	spec cron.Schedule
}

// Parse разбирает cron-выражение.
// Примеры:
//   - "0 0 * * *" - каждый день в полночь
//   - "*/15 9-18 * * MON-FRI" - каждые 15 минут в рабочие часы
//   - "30 0 0 * * *" - с полем секунд
//   - "@hourly", "@every 5m"
//
// Возвращает *InvalidScheduleError, если поле некорректно, выходит за допустимый
// диапазон или расписание не срабатывает никогда (например, "0 0 30 2 *").
func Parse(expr string) (Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Schedule{}, &InvalidScheduleError{Expr: expr, Err: errEmptyExpression}
	}

	spec, err := cronParser.Parse(trimmed)
	if err != nil {
		return Schedule{}, &InvalidScheduleError{Expr: expr, Err: err}
	}
	if spec.Next(reachabilityProbe).IsZero() {
		return Schedule{}, &InvalidScheduleError{Expr: expr, Err: errNeverFires}
	}

	return Schedule{expr: trimmed, spec: spec}, nil
}

// MustParse как Parse, но паникует при ошибке. Для тестов и констант.
func MustParse(expr string) Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String возвращает исходное (нормализованное) выражение.
func (s Schedule) String() string {
	return s.expr
}

// IsZero сообщает, что расписание не было получено через Parse.
func (s Schedule) IsZero() bool {
	return s.spec == nil
}

// Next возвращает ближайший момент срабатывания строго после from.
func (s Schedule) Next(from time.Time) time.Time {
	return NextFireAfter(s, from)
}

// NextFireAfter вычисляет ближайший момент срабатывания строго после from.
// Функция чистая: одинаковые входные данные дают одинаковый результат.
// Нулевое время означает, что следующего срабатывания нет.
func NextFireAfter(s Schedule, from time.Time) time.Time {
	if s.spec == nil {
		return time.Time{}
	}
	next := s.spec.Next(from)
	if next.IsZero() || !next.After(from) {
		return time.Time{}
	}
	return next
}
