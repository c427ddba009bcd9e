package main

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/edu-project-api/internal/handlers"
	"github.com/yukikurage/edu-project-api/internal/logger"
	"github.com/yukikurage/edu-project-api/internal/middleware"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/realtime"
	"github.com/yukikurage/edu-project-api/internal/services"
)

type routeDeps struct {
	auth          *services.AuthService
	projects      *services.ProjectService
	tasks         *services.TaskService
	notifications *services.NotificationService
	scheduler     *services.ReminderScheduler
	ai            *services.AIService
	hub           *realtime.Hub
	logger        *logger.Logger
}

func registerRoutes(r *gin.Engine, deps routeDeps) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.auth)
	projectHandler := handlers.NewProjectHandler(deps.projects)
	taskHandler := handlers.NewTaskHandler(deps.tasks)
	notificationHandler := handlers.NewNotificationHandler(deps.notifications)
	reminderHandler := handlers.NewReminderHandler(deps.scheduler)
	examHandler := handlers.NewExamHandler(deps.ai)
	wsHandler := handlers.NewWSHandler(deps.hub, deps.logger)

	tutorOnly := middleware.RequireRole(models.RoleTutor)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Education Project API is running",
		})
	})

	r.GET("/ws", middleware.RequireAuth(), wsHandler.Connect)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			access := middleware.RequireProjectAccess(deps.projects)
			owner := middleware.RequireProjectTutor()

			projects.POST("", tutorOnly, projectHandler.CreateProject)
			projects.GET("", projectHandler.ListProjects)
			projects.POST("/join", projectHandler.JoinProject)
			projects.GET("/:id", access, projectHandler.GetProject)
			projects.PUT("/:id", access, owner, projectHandler.UpdateProject)
			projects.DELETE("/:id", access, owner, projectHandler.DeleteProject)
			projects.POST("/:id/regenerate-code", access, owner, projectHandler.RegenerateInviteCode)
			projects.DELETE("/:id/participants/:userId", access, owner, projectHandler.RemoveParticipant)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", tutorOnly, taskHandler.CreateTask)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}

		// Notification routes (protected)
		notifications := api.Group("/notifications")
		notifications.Use(middleware.RequireAuth())
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PATCH("/read-all", notificationHandler.MarkAllRead)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
			notifications.DELETE("/:id", notificationHandler.DeleteNotification)
		}

		// Reminder routes (protected)
		reminders := api.Group("/reminders")
		reminders.Use(middleware.RequireAuth())
		{
			reminders.POST("", reminderHandler.CreateReminder)
			reminders.GET("", reminderHandler.ListReminders)
			reminders.POST("/custom", reminderHandler.ScheduleCustomReminder)
			reminders.DELETE("/custom/:jobId", reminderHandler.CancelCustomReminder)
			reminders.GET("/:id", reminderHandler.GetReminder)
			reminders.PUT("/:id", reminderHandler.UpdateReminder)
			reminders.DELETE("/:id", reminderHandler.DeleteReminder)
		}

		api.GET("/scheduler/status", middleware.RequireAuth(), reminderHandler.SchedulerStatus)
		api.POST("/exams/questions/generate", middleware.RequireAuth(), tutorOnly, examHandler.GenerateQuestions)
	}
}
