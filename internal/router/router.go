package router

import (
	"net/http"
	"time"

	"studyforum/internal/config"
	"studyforum/internal/db"
	"studyforum/internal/handlers"
	"studyforum/internal/logger"
	"studyforum/internal/middleware"
	"studyforum/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

const sessionName = "studyforum_session"

// Services 路由依赖的全部服务
type Services struct {
	DB         *gorm.DB
	Users      *services.UserService
	Posts      *services.PostService
	Comments   *services.CommentService
	Votes      *services.VoteLedger
	Saved      *services.SavedPostService
	Reputation *services.ReputationService
	Chat       *services.ChatRelay
	Summarizer *services.Summarizer
}

// New builds the engine with the middleware chain and every route.
func New(cfg *config.Config, log *logger.Logger, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("studyforum"))
	r.Use(middleware.RequestLogger(log))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		// 开发环境未配置时放行任意来源（带凭据时回显 Origin）
		corsCfg.AllowOriginFunc = func(string) bool { return !cfg.IsProduction() }
	}
	r.Use(cors.New(corsCfg))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.LoadUser(svc.Users))

	r.GET("/health", func(c *gin.Context) {
		if svc.DB != nil {
			if err := db.Ping(c.Request.Context(), svc.DB); err != nil {
				log.Error("Health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterRoutes(r, log, svc, middleware.NewUserRateLimiter(cfg.AIRatePerMinute, 0))
	return r
}

func RegisterRoutes(r *gin.Engine, log *logger.Logger, svc Services, aiLimiter *middleware.UserRateLimiter) {
	// Handlers
	authHandler := handlers.NewAuthHandler(svc.Users, log)
	postHandler := handlers.NewPostHandler(svc.Posts, svc.Votes, svc.Saved, log)
	boardHandler := handlers.NewBoardHandler(svc.Posts, log)
	commentHandler := handlers.NewCommentHandler(svc.Comments, svc.Votes, log)
	voteHandler := handlers.NewVoteHandler(svc.Votes, log)
	savedHandler := handlers.NewSavedPostHandler(svc.Saved, log)
	userHandler := handlers.NewUserHandler(svc.Users, svc.Posts, svc.Reputation, log)
	chatHandler := handlers.NewChatHandler(svc.Chat, svc.Summarizer, log)

	api := r.Group("/api")

	// 公共路由 (Public Routes)
	api.GET("/boards", boardHandler.ListBoards)                // 板块列表
	api.GET("/posts", postHandler.List)                        // 帖子列表
	api.GET("/posts/:id", postHandler.Detail)                  // 帖子详情
	api.GET("/posts/:id/comments", commentHandler.ListForPost) // 评论列表
	api.GET("/users/:id", userHandler.Profile)                 // 用户主页
	api.GET("/users/:id/posts", userHandler.Posts)             // 用户的帖子

	api.POST("/auth/register", authHandler.Register) // 注册
	api.POST("/auth/login", authHandler.Login)       // 登录
	api.POST("/auth/logout", authHandler.Logout)     // 退出登录

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/auth/user", authHandler.CurrentUser)

		authorized.POST("/posts", postHandler.Create)
		authorized.PATCH("/posts/:id", postHandler.Update)
		authorized.DELETE("/posts/:id", postHandler.Delete)
		authorized.POST("/posts/:id/vote", voteHandler.VotePost)      // 投票，重复投同值无变化
		authorized.DELETE("/posts/:id/vote", voteHandler.RetractPost) // 撤销投票

		authorized.POST("/comments", commentHandler.Create)
		authorized.DELETE("/comments/:id", commentHandler.Delete)
		authorized.POST("/comments/:id/vote", voteHandler.VoteComment)
		authorized.DELETE("/comments/:id/vote", voteHandler.RetractComment)

		authorized.GET("/saved-posts", savedHandler.List)
		authorized.POST("/saved-posts/:id", savedHandler.Save)
		authorized.DELETE("/saved-posts/:id", savedHandler.Unsave)
		authorized.GET("/saved-posts/:id/status", savedHandler.Status)

		authorized.GET("/users/me/reputation", userHandler.Reputation) // 声望明细

		authorized.GET("/chat/conversations", chatHandler.Conversations)
		authorized.GET("/chat/conversations/:id/messages", chatHandler.Messages)
	}

	// AI 路由按用户限流
	ai := api.Group("")
	ai.Use(middleware.AuthRequired(), aiLimiter.Middleware())
	{
		ai.POST("/chat", chatHandler.Send)                     // 流式对话
		ai.POST("/posts/:id/summarize", chatHandler.Summarize) // 讨论摘要
	}
}
