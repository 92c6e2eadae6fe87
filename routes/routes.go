package routes

import (
	"fulfillment-service/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, fc *controllers.FulfillmentController) {
	// Non-POST requests to the webhook must get a 405 before any
	// verification runs.
	r.HandleMethodNotAllowed = true

	r.POST("/stripe/webhook", fc.StripeWebhook)
	r.GET("/health", fc.Health)
}
