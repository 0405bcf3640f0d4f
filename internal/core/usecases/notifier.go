// internal/core/usecases/notifier.go
package usecases

import (
	"sync"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/logx"
)

// notifier entrega eventos a los observers de forma síncrona y en orden de
// attachment. La entrega síncrona es un contrato: por cada stage, "start"
// llega antes de que el cuerpo corra y "complete"/"error" después.
type notifier struct {
	mu        sync.Mutex
	observers []ports.Observer
	logger    logx.Logger
}

func newNotifier(logger logx.Logger) *notifier {
	return &notifier{logger: logger.With("component", "notifier")}
}

// Attach añade un observer al final del orden de entrega.
func (n *notifier) Attach(o ports.Observer) {
	if o == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, o)
}

// Emit entrega el evento a todos los observers. Un observer que entra en
// pánico se aísla: el resto sigue recibiendo el evento.
func (n *notifier) Emit(stage string, kind ports.EventKind, data any) {
	n.mu.Lock()
	observers := make([]ports.Observer, len(n.observers))
	copy(observers, n.observers)
	n.mu.Unlock()

	for _, o := range observers {
		n.deliver(o, stage, kind, data)
	}
}

func (n *notifier) deliver(o ports.Observer, stage string, kind ports.EventKind, data any) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("observer panicked", "stage", stage, "event", string(kind), "panic", r)
		}
	}()
	o.Update(stage, kind, data)
}
