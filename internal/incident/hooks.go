package incident

// Hooks receives pipeline events, typically to record metrics. Nil fields
// are ignored.
type Hooks struct {
	OnEnrich   func(outcome string, duration float64)
	OnDispatch func(ok bool, duration float64)
	OnComplete func(ok bool, duration float64)
}

func (h Hooks) enrich(outcome string, duration float64) {
	if h.OnEnrich != nil {
		h.OnEnrich(outcome, duration)
	}
}

func (h Hooks) dispatch(ok bool, duration float64) {
	if h.OnDispatch != nil {
		h.OnDispatch(ok, duration)
	}
}

func (h Hooks) complete(ok bool, duration float64) {
	if h.OnComplete != nil {
		h.OnComplete(ok, duration)
	}
}
