package jobqueue

// Enqueuer is the queue-backed implementation of the side-effect hooks the
// reconciliation engine depends on.
type Enqueuer struct {
	queue *Queue
}

func NewEnqueuer(queue *Queue) *Enqueuer {
	return &Enqueuer{queue: queue}
}

// EnqueueReceipt schedules receipt rendering and delivery for a settled
// sankalp.
func (e *Enqueuer) EnqueueReceipt(sankalpID uint) error {
	payload := ReceiptDeliveryJobPayload{SankalpID: sankalpID}
	_, err := e.queue.EnqueueJob(JobTypeReceiptDelivery, payload.ToMap())
	return err
}

// EnqueueExpiryNotice schedules the expired-link notification for a user.
func (e *Enqueuer) EnqueueExpiryNotice(userID uint, sankalpUUID string) error {
	payload := ExpiryNoticeJobPayload{UserID: userID, SankalpUUID: sankalpUUID}
	_, err := e.queue.EnqueueJob(JobTypeExpiryNotice, payload.ToMap())
	return err
}
