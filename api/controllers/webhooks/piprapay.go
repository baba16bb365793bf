package webhooks

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/promptstudio-ai/promptstudio-backend/api/responses"
	piprapaywebhook "github.com/promptstudio-ai/promptstudio-backend/internal/webhooks/piprapay"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/metrics"
)

const piprapayGateway = "piprapay"

type PaymentWebhookService interface {
	HandlePayment(ctx context.Context, event *piprapaywebhook.PaymentEvent) error
}

type webhookVerifier interface {
	Verify(headers http.Header, body []byte) error
}

// Guard suppresses duplicate deliveries keyed by body digest.
type Guard interface {
	CheckAndMark(ctx context.Context, digest string) (bool, error)
	Release(ctx context.Context, digest string) error
}

// PipraPayWebhook receives payment status deliveries from PipraPay. The
// provider retries on any non-2xx response, so the handler only returns 5xx
// for failures a retry could fix.
func PipraPayWebhook(svc PaymentWebhookService, verifier webhookVerifier, guard Guard, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteAckError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			wm.IncDelivery(piprapayGateway, "read_error")
			responses.WriteAckError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := verifier.Verify(r.Header, payload); err != nil {
			wm.IncDelivery(piprapayGateway, "rejected")
			responses.WriteAckError(ctx, logg, w, err)
			return
		}

		event, err := piprapaywebhook.ParsePaymentEvent(payload)
		if err != nil {
			wm.IncDelivery(piprapayGateway, "malformed")
			responses.WriteAckError(ctx, logg, w, err)
			return
		}

		digest := piprapaywebhook.BodyDigest(payload)
		seen, err := guard.CheckAndMark(ctx, digest)
		if err != nil {
			wm.IncDelivery(piprapayGateway, "guard_error")
			responses.WriteAckError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			wm.IncDelivery(piprapayGateway, "duplicate")
			responses.WriteAck(w, "Webhook already processed")
			return
		}

		if err := svc.HandlePayment(ctx, event); err != nil {
			// The duplicate guard only stays set for deliveries that
			// succeeded; a failed one must remain retryable.
			if relErr := guard.Release(ctx, digest); relErr != nil && logg != nil {
				logg.Error(ctx, "release idempotency mark", relErr)
			}
			wm.IncDelivery(piprapayGateway, "failed")
			responses.WriteAckError(ctx, logg, w, err)
			return
		}

		wm.IncDelivery(piprapayGateway, "processed")
		wm.ObserveProcessing(piprapayGateway, time.Since(start))

		if logg != nil {
			logg.Info(logg.WithTransactionID(ctx, event.CorrelationID()), "webhook processed")
		}
		responses.WriteAck(w, "Webhook processed successfully")
	}
}
