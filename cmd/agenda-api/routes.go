package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/handler"
	"github.com/agendapro/agenda-api/internal/middleware"
	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/pkg/config"
)

type routeDeps struct {
	auth          *handler.AuthHandler
	users         *handler.UserHandler
	configuration *handler.ConfigurationHandler
	catalog       *handler.CatalogHandler
	staff         *handler.StaffHandler
	appointments  *handler.AppointmentHandler
	agenda        *handler.AgendaHandler
	exports       *handler.ExportHandler
	invoices      *handler.InvoiceHandler
	erp           *handler.ERPHandler
	metrics       *handler.MetricsHandler

	tokens middleware.TokenValidator
	audit  middleware.AuditWriter
	logger *zap.Logger
	ready  func(ctx context.Context) error
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/health", d.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", d.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := middleware.RequireRoles(models.RoleAdmin)
	staffOrAdmin := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(d.audit, d.logger, action, resource)
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", d.auth.Register)
	auth.POST("/login", d.auth.Login)
	auth.POST("/refresh", d.auth.Refresh)
	auth.POST("/logout", middleware.JWT(d.tokens), d.auth.Logout)
	auth.GET("/me", middleware.JWT(d.tokens), d.auth.Me)

	// Public reads. A token, when sent, unlocks admin views.
	public := api.Group("", middleware.OptionalJWT(d.tokens))
	public.GET("/business", d.configuration.Business)
	public.GET("/services", d.catalog.List)
	public.GET("/services/:id", d.catalog.Get)
	public.GET("/staff", d.staff.List)
	public.GET("/staff/:id", d.staff.Get)
	public.GET("/staff/:id/windows", d.staff.Windows)
	public.GET("/availability", d.appointments.Availability)
	public.GET("/exports/:token", d.exports.Download)

	secured := api.Group("", middleware.JWT(d.tokens))

	secured.POST("/appointments", middleware.RequireRoles(models.RoleClient), d.appointments.Book)
	secured.GET("/appointments/:id", d.appointments.Get)
	secured.POST("/appointments/:id/cancel", d.appointments.Cancel)
	secured.PATCH("/appointments/:id/status", staffOrAdmin, d.appointments.UpdateStatus)
	secured.PUT("/appointments/:id", admin, d.appointments.Reschedule)
	secured.DELETE("/appointments/:id", admin, d.appointments.Delete)
	secured.POST("/appointments/:id/invoice", admin, audit(models.AuditActionInvoiceIssue, "invoice"), d.invoices.Issue)
	secured.GET("/appointments/:id/invoice", admin, d.invoices.ForAppointment)

	me := secured.Group("/me")
	me.GET("/agenda", middleware.RequireRoles(models.RoleStaff), d.agenda.StaffDay)
	me.GET("/appointments", middleware.RequireRoles(models.RoleClient), d.agenda.MyAppointments)
	me.GET("/appointments/upcoming", middleware.RequireRoles(models.RoleClient), d.agenda.Upcoming)

	adm := secured.Group("", admin)
	adm.POST("/admin/appointments", d.appointments.AdminBook)
	adm.GET("/agenda", d.agenda.Day)
	adm.GET("/agenda/appointments/:id", d.agenda.Detail)
	adm.POST("/exports/agenda", audit(models.AuditActionAgendaExport, "agenda"), d.exports.ExportAgenda)

	adm.POST("/services", d.catalog.Create)
	adm.PUT("/services/:id", d.catalog.Update)
	adm.PATCH("/services/:id/status", d.catalog.SetActive)

	adm.POST("/staff", d.staff.Create)
	adm.PUT("/staff/:id", d.staff.Update)
	adm.PATCH("/staff/:id/status", d.staff.SetActive)
	adm.PUT("/staff/:id/windows", d.staff.ReplaceWindows)
	adm.GET("/staff/:id/absences", d.staff.Absences)
	adm.POST("/staff/:id/absences", d.staff.AddAbsence)
	adm.DELETE("/staff/:id/absences/:absenceId", d.staff.RemoveAbsence)

	adm.GET("/users", d.users.List)
	adm.GET("/users/:id", d.users.Get)
	adm.POST("/users", d.users.Create)
	adm.PUT("/users/:id", d.users.Update)

	adm.GET("/configuration", d.configuration.List)
	adm.GET("/configuration/:key", d.configuration.Get)
	adm.PUT("/configuration/bulk", d.configuration.BulkUpdate)
	adm.PUT("/configuration/:key", d.configuration.Update)

	adm.GET("/invoices/:id", d.invoices.Get)
	adm.POST("/invoices/:id/status", d.invoices.RefreshStatus)
	adm.POST("/invoices/:id/cancel", audit(models.AuditActionInvoiceCancel, "invoice"), d.invoices.Cancel)

	adm.POST("/erp/sync", audit(models.AuditActionERPSync, "erp"), d.erp.Sync)
	adm.GET("/erp/customers", d.erp.Customers)
	adm.POST("/erp/customers", d.erp.CreateCustomer)

	adm.GET("/system/metrics", d.metrics.Snapshot)
}
