package handlers

import (
	"fmt"
	"strings"

	"dynsched/internal/scheduler"
)

const timeLayout = "02.01.2006 15:04:05 MST"

// Jobs renders the schedule for /jobs.
func Jobs(infos []scheduler.JobInfo) string {
	if len(infos) == 0 {
		return "задач нет"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "задач: %d\n", len(infos))
	for _, info := range infos {
		next := "-"
		if !info.NextFire.IsZero() {
			next = info.NextFire.Format(timeLayout)
		}
		fmt.Fprintf(&sb, "\n%s\n  cron: %s\n  следующий запуск: %s\n  состояние: %s\n",
			info.Name, info.Cron, next, info.State)
	}
	return sb.String()
}
