package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
	"github.com/bytesecuritas/sensi-back/internal/middleware"
	"github.com/bytesecuritas/sensi-back/internal/security"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Organisations *service.OrganisationService
	Learning      *service.LearningService
	Tokens        *security.TokenIssuer
	Engine        *authz.Engine
	Policies      authz.PolicyTable
	Metrics       *metrics.Metrics
	HealthChecks  []HealthCheck
	Environment   string
}

type HandlerSet struct {
	log           zerolog.Logger
	environment   string
	auth          *service.AuthService
	users         *service.UserService
	organisations *service.OrganisationService
	learning      *service.LearningService
	tokens        *security.TokenIssuer
	engine        *authz.Engine
	policies      authz.PolicyTable
	metrics       *metrics.Metrics
	checks        []HealthCheck
}

func NewHandlerSet(log zerolog.Logger, deps Dependencies) HandlerSet {
	policies := deps.Policies
	if policies == nil {
		policies = authz.DefaultPolicies()
	}

	return HandlerSet{
		log:           log,
		environment:   deps.Environment,
		auth:          deps.Auth,
		users:         deps.Users,
		organisations: deps.Organisations,
		learning:      deps.Learning,
		tokens:        deps.Tokens,
		engine:        deps.Engine,
		policies:      policies,
		metrics:       deps.Metrics,
		checks:        deps.HealthChecks,
	}
}

// Policies is the route policy table guarding the protected routes.
func (h HandlerSet) Policies() authz.PolicyTable {
	return h.policies
}

// Routes mounts every route on router. Paths of protected routes must match
// keys of the policy table.
func (h HandlerSet) Routes(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.Refresh)

	protected := router.Group("")
	protected.Use(
		middleware.Auth(h.tokens, h.log),
		middleware.Authorize(h.policies, h.engine, h.metrics, h.log),
	)
	{
		protected.POST("/auth/register", h.Register)
		protected.GET("/auth/profile", h.Profile)

		protected.GET("/users", h.ListUsers)
		protected.GET("/users/:id", h.GetUser)
		protected.PUT("/users/:id", h.UpdateUser)
		protected.DELETE("/users/:id", h.DeleteUser)
		protected.PUT("/users/:id/password", h.ChangePassword)

		protected.POST("/organisations", h.CreateOrganisation)
		protected.GET("/organisations", h.ListOrganisations)
		protected.GET("/organisations/:id", h.GetOrganisation)
		protected.GET("/organisations/:id/stats", h.OrganisationStats)
		protected.GET("/organisations/:id/users", h.OrganisationMembers)
		protected.PATCH("/organisations/:id", h.UpdateOrganisation)
		protected.DELETE("/organisations/:id", h.DeleteOrganisation)
		protected.DELETE("/organisations/:id/users/:userId", h.DetachMember)

		protected.POST("/learning/organisations/:orgId/parcours/:parcoursId", h.AssociatePath)
		protected.DELETE("/learning/organisations/:orgId/parcours/:parcoursId", h.RetractPath)
		protected.GET("/learning/organisations/:orgId/parcours", h.OrganisationPaths)
		protected.GET("/learning/parcours/user/available", h.AvailablePaths)
		protected.GET("/learning/access/check/:parcoursId", h.CheckAccess)
	}
}

func (h HandlerSet) fail(c *gin.Context, err error) {
	middleware.WriteError(c, h.log, err)
}

// bind decodes the JSON body into dst, reporting binding failures as
// validation errors.
func (h HandlerSet) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, errs.Invalid("body", err.Error()))
		return false
	}
	return true
}
