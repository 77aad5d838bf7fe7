package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"

	"go.uber.org/zap"
)

// Mailer delivers one notification to one recipient.
type Mailer interface {
	Send(ctx context.Context, recipient string, event model.NotificationEvent) error
}

// Outcome is the per-recipient result of a dispatch.
type Outcome struct {
	Recipient string
	Err       error
}

type Dispatcher struct {
	Mailer Mailer
	// SendTimeout bounds each individual send. Zero means no bound.
	SendTimeout time.Duration
}

func NewDispatcher(mailer Mailer, sendTimeout time.Duration) *Dispatcher {
	return &Dispatcher{Mailer: mailer, SendTimeout: sendTimeout}
}

// Dispatch sends event to every recipient concurrently. A failing recipient
// never affects the others; failures are logged and returned, not retried.
// Outcomes are in the same order as event.Recipients.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.NotificationEvent) []Outcome {
	if len(event.Recipients) == 0 {
		return nil
	}

	outcomes := make([]Outcome, len(event.Recipients))
	var wg sync.WaitGroup
	for i, recipient := range event.Recipients {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			outcomes[i] = Outcome{Recipient: recipient, Err: d.send(ctx, recipient, event)}
		}(i, recipient)
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, recipient string, event model.NotificationEvent) (err error) {
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: mailer panic: %v", docerr.ErrMailSend, r)
		}
		if err != nil {
			logger.Log.Error("notification send failed",
				zap.String("recipient", recipient),
				zap.String("document_id", event.DocumentID),
				zap.Error(err))
		}
	}()

	if err := d.Mailer.Send(ctx, recipient, event); err != nil {
		return fmt.Errorf("%w: %s: %v", docerr.ErrMailSend, recipient, err)
	}
	logger.Sugar.Infof("Notification sent to %s for document %s", recipient, event.DocumentID)
	return nil
}
