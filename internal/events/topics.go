package events

// Topic constants for domain events emitted by the register.
const (
	TopicTransactionCompleted = "transaction.completed"
	TopicTransactionRefunded  = "transaction.refunded"
	TopicShiftOpened          = "shift.opened"
	TopicShiftClosed          = "shift.closed"
)
