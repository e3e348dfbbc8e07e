// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/schoolhub/internal/handlers"
	"codeberg.org/oliverandrich/schoolhub/internal/middleware"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, app *App) {
	h := handlers.New(app.Repo)
	authH := handlers.NewAuth(app.Auth, app.Tokens, app.ReturnTo)
	schoolH := handlers.NewSchools(app.Repo)
	requireSession := middleware.RequireSession()

	e.GET("/health", h.Health)

	// Pages
	e.GET("/", h.Home)
	e.GET("/login", authH.LoginPage)
	e.GET("/signup", authH.SignupPage)
	e.GET("/add-school", schoolH.AddSchoolPage)
	e.GET("/edit-school/:id", schoolH.EditSchoolPage)

	// Auth API
	e.POST("/signup", authH.Signup)
	a := e.Group("/auth")
	a.POST("/send-otp", authH.SendOTP)
	a.POST("/verify-otp", authH.VerifyOTP)
	a.POST("/logout", authH.Logout)
	a.GET("/me", authH.Me)

	// Schools API
	s := e.Group("/schools")
	s.GET("", schoolH.List)
	s.GET("/:id", schoolH.Get)
	s.POST("", schoolH.Create, requireSession)
	s.PUT("/:id", schoolH.Update, requireSession)
	s.DELETE("/:id", schoolH.Delete, requireSession)
}
