package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookhaven/bookhaven-server/internal/denorm"
	"github.com/bookhaven/bookhaven-server/internal/logger"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

// TriggerPipeline marks the denormalization handlers as registered and the
// dispatch loop as running.
type TriggerPipeline struct {
	Aggregator *denorm.Aggregator
	Propagator *denorm.Propagator
}

// ProvideTriggerPipeline registers the denormalization handlers on the
// dispatcher and starts its loop. Must run after the store exists so the
// handlers have a store to write through.
func ProvideTriggerPipeline(i do.Injector) (*TriggerPipeline, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	dispatcherHandle := do.MustInvoke[*DispatcherHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	aggregator := denorm.NewAggregator(storeHandle.Store, log.Logger)
	propagator := denorm.NewPropagator(storeHandle.Store, log.Logger)

	dispatcherHandle.Register(trigger.EventRatingWritten, aggregator)
	dispatcherHandle.Register(trigger.EventBookUpdated, propagator)
	dispatcherHandle.Register(trigger.EventBookDeleted, propagator)
	dispatcherHandle.Register(trigger.EventUserUpdated, propagator)

	dispatcherHandle.Run()
	log.Info("Trigger pipeline started")

	return &TriggerPipeline{
		Aggregator: aggregator,
		Propagator: propagator,
	}, nil
}
