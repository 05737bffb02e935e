package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/middleware"
	"github.com/noah-isme/crewsync-api/internal/models"
)

// RouterDeps groups everything RegisterRoutes mounts.
type RouterDeps struct {
	Auth        gin.HandlerFunc
	AuditLog    middleware.AuditWriter
	Logger      *zap.Logger
	Events      *EventHandler
	Assignments *AssignmentHandler
	Stats       *StatsHandler
}

// RegisterRoutes mounts the authenticated API under group.
func RegisterRoutes(group *gin.RouterGroup, deps RouterDeps) {
	audit := func(action, resource, idParam string) gin.HandlerFunc {
		return middleware.Audit(deps.AuditLog, deps.Logger, action, resource, idParam)
	}
	anyone := middleware.RequireRoles(models.RoleAdmin, models.RoleOrganizer, models.RoleVolunteer)
	managers := middleware.RequireRoles(models.RoleAdmin, models.RoleOrganizer)
	admins := middleware.RequireRoles(models.RoleAdmin)

	api := group.Group("")
	api.Use(deps.Auth)

	events := api.Group("/events")
	events.GET("", anyone, deps.Events.List)
	events.POST("", managers, audit(models.AuditActionEventCreate, "event", ""), deps.Events.Create)
	events.GET("/:id", anyone, deps.Events.Get)
	events.PATCH("/:id/status", managers, audit(models.AuditActionEventStatus, "event", "id"), deps.Events.UpdateStatus)
	events.POST("/:id/shifts", managers, audit(models.AuditActionShiftCreate, "event", "id"), deps.Events.CreateShift)
	events.GET("/:id/shifts", anyone, deps.Events.ListShifts)

	events.POST("/:id/join", anyone, audit(models.AuditActionJoin, "event", "id"), deps.Assignments.Join)
	events.DELETE("/:id/volunteers/:volunteerId", anyone, audit(models.AuditActionLeave, "volunteer", "volunteerId"), deps.Assignments.Leave)
	events.PATCH("/:id/volunteers/:volunteerId/status", anyone, audit(models.AuditActionTransition, "volunteer", "volunteerId"), deps.Assignments.Transition)
	events.POST("/:id/shifts/:shiftId/assignments", anyone, audit(models.AuditActionPlace, "shift", "shiftId"), deps.Assignments.Assign)
	events.DELETE("/:id/shifts/:shiftId/assignments/:volunteerId", anyone, audit(models.AuditActionUnplace, "shift", "shiftId"), deps.Assignments.Unassign)
	events.GET("/:id/assignments", managers, deps.Assignments.ListForEvent)
	events.GET("/:id/occupancy", anyone, deps.Assignments.EventOccupancy)
	events.GET("/:id/duplicates", managers, deps.Assignments.Duplicates)
	events.GET("/:id/over-capacity", managers, deps.Assignments.OverCapacity)
	events.POST("/:id/reconcile", managers, audit(models.AuditActionReconcile, "event", "id"), deps.Assignments.Reconcile)
	events.GET("/:id/stats", managers, deps.Stats.EventStats)

	api.GET("/shifts/:shiftId/occupancy", anyone, deps.Assignments.ShiftOccupancy)
	api.GET("/volunteers/me/assignments", anyone, deps.Assignments.ListMine)
	api.POST("/organizers/me/reconcile", managers, audit(models.AuditActionOrganizerReconcile, "organizer", ""), deps.Assignments.ReconcileOrganizer)
	api.GET("/admin/stats", admins, deps.Stats.AdminSummary)
}
