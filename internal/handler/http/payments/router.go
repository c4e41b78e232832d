package payments

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/payments"
	"checkout/internal/auth"
)

func RegisterRoutes(r chi.Router, s payments.PaymentService, jwtSecret string, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/payments", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))
		r.Post("/create-intent", handler.CreateIntent)
		r.Post("/confirm/{paymentID}", handler.ConfirmPayment)
		r.Get("/{paymentID}", handler.GetPayment)
		r.Post("/{paymentID}/refund", handler.RefundPayment)
	})
}
