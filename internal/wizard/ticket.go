package wizard

// Ticket identifies what an asynchronous request was issued for. A response
// is applied only while its ticket is still Relevant.
type Ticket struct {
	StepID    string
	ServiceID string
	EventID   string
	Field     string
}

// TicketFor captures the current service and event of a step.
func (s State) TicketFor(stepID, field string) Ticket {
	t := Ticket{StepID: stepID, Field: field}
	if st, ok := s.Step(stepID); ok {
		if st.Service != nil {
			t.ServiceID = st.Service.ID
		}
		if st.Event != nil {
			t.EventID = st.Event.ID
		}
	}
	return t
}

// Relevant reports whether the step still has the service and event the
// ticket was issued for.
func (s State) Relevant(t Ticket) bool {
	st, ok := s.Step(t.StepID)
	if !ok {
		return false
	}
	var svc, ev string
	if st.Service != nil {
		svc = st.Service.ID
	}
	if st.Event != nil {
		ev = st.Event.ID
	}
	return svc == t.ServiceID && ev == t.EventID
}
