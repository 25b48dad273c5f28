package router

import (
	"github.com/gin-gonic/gin"
	"github.com/taskhub/auth-service/internal/middleware"
)

func (r *Router) authRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		// Public routes, rate limited per client IP
		public := auth.Group("")
		public.Use(middleware.RateLimit(r.redisClient, r.config.RateLimit.Request, r.config.RateLimit.Duration))
		{
			public.POST("/register", r.authHandler.Register)
			public.POST("/login", r.authHandler.Login)
			public.POST("/refresh", r.authHandler.RefreshToken)
		}

		// Protected routes (bearer access token required)
		protected := auth.Group("")
		protected.Use(r.jwtMw.RequireAuth())
		{
			protected.POST("/logout", r.authHandler.Logout)
			protected.GET("/me", r.userHandler.Me)
		}
	}
}
