package api

import (
	"errors"
	"net/http"
	"time"

	"gymstack_go_backend/internal/auth"
	apperrors "gymstack_go_backend/internal/errors"
	"gymstack_go_backend/internal/models"
	"gymstack_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SetupRoutes(
	r *gin.Engine,
	alternativesService *services.AlternativesService,
	meter services.UsageMeterManager,
	catalog services.ExerciseCatalogDB,
	usageDB services.UsageServiceDB,
	userService *services.UserService,
	limiter *RateLimiter,
) {
	api := r.Group("/api")
	{
		api.POST("/exercises/:exercise_id/alternatives", auth.AuthMiddleware(userService), limiter.Limit(), getAlternativesHandler(alternativesService))
		api.GET("/ai-usage", auth.AuthMiddleware(userService), getAIUsageHandler(meter, catalog, usageDB))
	}
}

type alternativesRequestBody struct {
	DifficultyFilter string `json:"difficulty_filter"`
	Limit            int    `json:"limit"`
}

var validDifficulties = map[string]bool{
	"":                            true,
	models.DifficultyBeginner:     true,
	models.DifficultyIntermediate: true,
	models.DifficultyAdvanced:     true,
}

func getAlternativesHandler(alternativesService *services.AlternativesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, orgID, ok := requestIdentity(c)
		if !ok {
			return
		}

		exerciseID, err := uuid.Parse(c.Param("exercise_id"))
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("invalid exercise id"))
			return
		}

		var body alternativesRequestBody
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				apperrors.HandleError(c, apperrors.New400Error("invalid request body"))
				return
			}
		}
		if !validDifficulties[body.DifficultyFilter] {
			apperrors.HandleError(c, apperrors.New400Error("invalid difficulty_filter"))
			return
		}
		if body.Limit < 0 {
			apperrors.HandleError(c, apperrors.New400Error("limit must not be negative"))
			return
		}

		result, err := alternativesService.GetAlternatives(c.Request.Context(), orgID, user.ID, services.AlternativesRequest{
			ExerciseID:       exerciseID,
			DifficultyFilter: body.DifficultyFilter,
			Limit:            body.Limit,
		})
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		alternatives := make([]gin.H, len(result.Alternatives))
		for i, alt := range result.Alternatives {
			alternatives[i] = gin.H{
				"exercise": gin.H{
					"id":            alt.ExerciseID,
					"name":          alt.Name,
					"muscle_groups": alt.MuscleGroups,
				},
				"reason": alt.Reason,
				"score":  alt.Score,
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"alternatives":       alternatives,
			"source":             result.Source,
			"was_cached":         result.WasCached,
			"tokens_used":        result.TokensUsed,
			"remaining_requests": result.RemainingRequests,
		})
	}
}

func getAIUsageHandler(meter services.UsageMeterManager, catalog services.ExerciseCatalogDB, usageDB services.UsageServiceDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, orgID, ok := requestIdentity(c)
		if !ok {
			return
		}

		org, err := catalog.GetOrganization(c.Request.Context(), orgID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		allowance, err := meter.Check(c.Request.Context(), org, user.ID, models.FeatureAlternatives)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		// Billing-facing mirrors for the current month. A missing record just
		// means nothing was consumed this period yet.
		period := services.MonthlyPeriod(time.Now())
		orgUsage, err := usageDB.GetOrgUsageDB(orgID, period)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			orgUsage = &models.AIUsageRecord{OrganizationID: orgID, Period: period}
		} else if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}
		userUsage, err := usageDB.GetUserUsageDB(user.ID, period)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			userUsage = &models.UserAIUsageRecord{UserID: user.ID, OrganizationID: orgID, Period: period}
		} else if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ai_enabled": org.AIEnabled,
			"allowance":  allowance,
			"period":     period,
			"org_usage": gin.H{
				"tokens_used":        orgUsage.TokensUsed,
				"request_count":      orgUsage.RequestCount,
				"alternatives_count": orgUsage.AlternativesCount,
			},
			"user_usage": gin.H{
				"tokens_used":   userUsage.TokensUsed,
				"request_count": userUsage.RequestCount,
			},
		})
	}
}

func requestIdentity(c *gin.Context) (*models.User, uuid.UUID, bool) {
	userValue, exists := c.Get("user")
	if !exists {
		apperrors.HandleError(c, apperrors.New401Error())
		return nil, uuid.Nil, false
	}
	user, ok := userValue.(*models.User)
	if !ok {
		apperrors.HandleError(c, apperrors.New500Error(nil))
		return nil, uuid.Nil, false
	}

	orgValue, exists := c.Get("organization_id")
	if !exists {
		apperrors.HandleError(c, apperrors.New401Error())
		return nil, uuid.Nil, false
	}
	orgID, ok := orgValue.(uuid.UUID)
	if !ok {
		apperrors.HandleError(c, apperrors.New500Error(nil))
		return nil, uuid.Nil, false
	}

	return user, orgID, true
}
