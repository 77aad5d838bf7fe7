package notify

import (
	"context"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/logger"
)

// Pipeline runs detector, resolver and dispatcher for one persisted change.
type Pipeline struct {
	Resolver   *Resolver
	Dispatcher *Dispatcher
	Now        func() time.Time
}

func NewPipeline(resolver *Resolver, dispatcher *Dispatcher) *Pipeline {
	return &Pipeline{Resolver: resolver, Dispatcher: dispatcher, Now: time.Now}
}

// Run notifies collaborators about the transition before -> after. It returns
// the classification and the per-recipient outcomes; the error is non-nil only
// when recipients could not be resolved.
func (p *Pipeline) Run(ctx context.Context, before, after model.Snapshot, action string) (ChangeClass, []Outcome, error) {
	class := Classify(before, after)
	if class != SignificantChange {
		logger.Sugar.Debugf("Document %s: %s, skipping notification", after.ID, class)
		return class, nil, nil
	}

	recipients, err := p.Resolver.Resolve(ctx, after, after.LastUpdatedByEmail)
	if err != nil {
		logger.Sugar.Errorf("Document %s: resolve recipients: %v", after.ID, err)
		return class, nil, err
	}
	if len(recipients) == 0 {
		logger.Sugar.Infof("Document %s: no recipients found for notification", after.ID)
		return class, nil, nil
	}

	if action == "" {
		action = "updated"
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	event := model.NotificationEvent{
		DocumentID:       after.ID,
		Title:            after.Title,
		ActorEmail:       after.LastUpdatedByEmail,
		ActorDisplayName: DisplayName(after.LastUpdatedByName, after.LastUpdatedByEmail),
		Action:           action,
		Timestamp:        now(),
		Recipients:       recipients,
		ContentAdded:     before.Content == "" && after.Content != "",
	}
	logger.Sugar.Infof("Document %s: notifying %d recipients", after.ID, len(recipients))
	return class, p.Dispatcher.Dispatch(ctx, event), nil
}
