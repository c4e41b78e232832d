package orders

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/orders"
	"checkout/internal/auth"
)

func RegisterRoutes(r chi.Router, s orders.OrderService, jwtSecret string, l *zap.Logger) {
	handler := NewOrderHandler(s, l.With(zap.String("component", "OrderHTTPHandler")))

	r.Route("/orders", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))
		r.Post("/", handler.CreateOrder)
		r.Get("/", handler.ListOrders)
		r.Get("/{orderID}", handler.GetOrder)
		r.Post("/{orderID}/cancel", handler.CancelOrder)
		// Fulfillment is an operator command, not an owner command.
		r.With(auth.RequireRole(auth.RoleOperator)).
			Post("/{orderID}/fulfillment", handler.AdvanceFulfillment)
	})
}
