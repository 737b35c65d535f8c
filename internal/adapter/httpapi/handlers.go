package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dynsched/internal/scheduler"
	"dynsched/internal/shared"
)

type jobRequest struct {
	JobName        string `json:"jobName" binding:"required,max=200"`
	CronExpression string `json:"cronExpression" binding:"required,max=200"`
}

func (r jobRequest) definition() scheduler.JobDefinition {
	return scheduler.JobDefinition{Name: r.JobName, Cron: r.CronExpression}.Normalize()
}

type jobResponse struct {
	JobName        string     `json:"jobName"`
	CronExpression string     `json:"cronExpression"`
	NextFire       *time.Time `json:"nextFire,omitempty"`
	State          string     `json:"state"`
}

func toResponse(info scheduler.JobInfo) jobResponse {
	resp := jobResponse{
		JobName:        info.Name,
		CronExpression: info.Cron,
		State:          info.State.String(),
	}
	if !info.NextFire.IsZero() {
		next := info.NextFire
		resp.NextFire = &next
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	case shared.KindDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= 500 {
		_ = c.Error(err)
		h.log.Error("request error", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error(), Kind: shared.KindOf(err).String()})
}

func (h *Handler) bind(c *gin.Context) (scheduler.JobDefinition, bool) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, shared.MarkKind(err, shared.KindValidation))
		return scheduler.JobDefinition{}, false
	}
	return req.definition(), true
}

func (h *Handler) respondJob(c *gin.Context, status int, name string) {
	info, err := h.sched.Job(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, toResponse(info))
}

// addJob schedules a new job and persists it. A persistence failure
// cancels the freshly scheduled job so memory and store stay aligned.
func (h *Handler) addJob(c *gin.Context) {
	def, ok := h.bind(c)
	if !ok {
		return
	}
	if err := h.sched.ScheduleJob(def); err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.storeCtx(c)
	defer cancel()
	if err := h.store.Create(ctx, def); err != nil {
		if cerr := h.sched.CancelJob(def.Name); cerr != nil {
			h.log.Error("rollback failed", "job", def.Name, "err", cerr)
		}
		h.fail(c, err)
		return
	}
	h.respondJob(c, http.StatusCreated, def.Name)
}

// updateJob stores the new cron first, then replaces the live schedule.
func (h *Handler) updateJob(c *gin.Context) {
	def, ok := h.bind(c)
	if !ok {
		return
	}
	if _, err := def.Validate(); err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.storeCtx(c)
	defer cancel()
	created, err := h.store.SaveCron(ctx, def)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.sched.UpdateJob(def); err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.respondJob(c, status, def.Name)
}

// cancelJob stops the job and removes it from the store. It answers 404
// only when neither the engine nor the store knew the name.
func (h *Handler) cancelJob(c *gin.Context) {
	name := c.Param("jobName")
	engineErr := h.sched.CancelJob(name)
	if engineErr != nil && !errors.Is(engineErr, shared.ErrNotFound) {
		h.fail(c, engineErr)
		return
	}

	ctx, cancel := h.storeCtx(c)
	defer cancel()
	deleted, err := h.store.Delete(ctx, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	if engineErr != nil && !deleted {
		h.fail(c, engineErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": name})
}

func (h *Handler) listJobs(c *gin.Context) {
	infos := h.sched.Jobs()
	out := make([]jobResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toResponse(info))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getJob(c *gin.Context) {
	h.respondJob(c, http.StatusOK, c.Param("jobName"))
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := h.storeCtx(c)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "jobs": len(h.sched.Jobs())})
}
