package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/domain"
)

// fakeInboxRepo mirrors the claim semantics of the postgres implementation:
// first claim wins, a processed record rejects forever, a released claim can
// be retaken.
type fakeInboxRepo struct {
	statuses map[string]domain.InboxMessageStatus
}

func newFakeInboxRepo() *fakeInboxRepo {
	return &fakeInboxRepo{statuses: make(map[string]domain.InboxMessageStatus)}
}

func (f *fakeInboxRepo) Claim(_ context.Context, msg *domain.InboxMessage) error {
	switch f.statuses[msg.ID] {
	case domain.InboxStatusProcessed:
		return domain.ErrEventAlreadyProcessed
	case domain.InboxStatusProcessing:
		return domain.ErrEventInFlight
	}
	f.statuses[msg.ID] = domain.InboxStatusProcessing
	return nil
}

func (f *fakeInboxRepo) Release(_ context.Context, id string) error {
	delete(f.statuses, id)
	return nil
}

func (f *fakeInboxRepo) markProcessed(id string) {
	f.statuses[id] = domain.InboxStatusProcessed
}

type fakeOrderRepo struct {
	orders map[string]*domain.Order
	outbox []*domain.OutboxMessage
	inbox  *fakeInboxRepo
}

func newFakeOrderRepo(inbox *fakeInboxRepo) *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order), inbox: inbox}
}

func (f *fakeOrderRepo) CreateOrderAndOutboxMessage(_ context.Context, order *domain.Order, msg *domain.OutboxMessage) error {
	stored := *order
	f.orders[order.ID] = &stored
	f.outbox = append(f.outbox, msg)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	stored, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order := *stored
	return &order, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, stored := range f.orders {
		if stored.UserID == userID {
			order := *stored
			out = append(out, &order)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateOrder(_ context.Context, order *domain.Order) error {
	stored, ok := f.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return domain.ErrVersionConflict
	}
	order.Version++
	updated := *order
	f.orders[order.ID] = &updated
	return nil
}

func (f *fakeOrderRepo) UpdateOrderAndMarkInbox(ctx context.Context, order *domain.Order, inboxID string) error {
	if err := f.UpdateOrder(ctx, order); err != nil {
		return err
	}
	f.inbox.markProcessed(inboxID)
	return nil
}

func (f *fakeOrderRepo) MarkInboxProcessed(_ context.Context, inboxID string) error {
	f.inbox.markProcessed(inboxID)
	return nil
}

func newTestService(t *testing.T) (OrderService, *fakeOrderRepo, *fakeInboxRepo) {
	t.Helper()
	inbox := newFakeInboxRepo()
	repo := newFakeOrderRepo(inbox)
	return NewOrderService(repo, inbox, zap.NewNop()), repo, inbox
}

func createOrderReq() *CreateOrderRequest {
	return &CreateOrderRequest{
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 2, Price: 10},
		},
		ShippingAddress: domain.ShippingAddress{City: "Berlin", Country: "DE"},
	}
}

func TestCreateOrderQueuesOrderCreatedEvent(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)
	assert.Equal(t, 20.0, resp.TotalAmount)
	assert.Equal(t, string(domain.OrderStatusPending), resp.Status)

	require.Len(t, repo.outbox, 1)
	msg := repo.outbox[0]
	assert.Equal(t, domain.TopicOrderCreated, msg.Topic)
	assert.Equal(t, resp.ID, msg.Key)
	assert.Equal(t, domain.OutboxStatusPending, msg.Status)

	var event domain.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, resp.ID, event.OrderID)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, 20.0, event.TotalAmount)
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.CreateOrder(context.Background(), "user-1", &CreateOrderRequest{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, repo.orders)
	assert.Empty(t, repo.outbox)
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)

	got, err := svc.GetOrder(context.Background(), resp.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, resp.ID, got.ID)

	_, err = svc.GetOrder(context.Background(), resp.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetOrder(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(context.Background(), resp.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusCancelled), cancelled.Status)

	// Cancelling again is a transition error, not a silent no-op.
	_, err = svc.CancelOrder(context.Background(), resp.ID, "user-1")
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)

	assert.Equal(t, domain.OrderStatusCancelled, repo.orders[resp.ID].Status)
}

func TestCancelPaidOrderRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)
	repo.orders[resp.ID].Status = domain.OrderStatusPaid

	_, err = svc.CancelOrder(context.Background(), resp.ID, "user-1")
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, string(domain.OrderStatusPaid), te.From)
}

func paymentCompleted(orderID string) (*domain.PaymentCompletedEvent, []byte) {
	event := &domain.PaymentCompletedEvent{OrderID: orderID, Status: string(domain.OrderStatusPaid)}
	payload, _ := json.Marshal(event)
	return event, payload
}

func TestApplyPaymentOutcomeMarksOrderPaidExactlyOnce(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)

	event, payload := paymentCompleted(resp.ID)
	require.NoError(t, svc.ApplyPaymentOutcome(context.Background(), event, payload))
	assert.Equal(t, domain.OrderStatusPaid, repo.orders[resp.ID].Status)
	versionAfterFirst := repo.orders[resp.ID].Version

	// Redelivery of the same event is rejected by the inbox before any
	// domain logic runs.
	err = svc.ApplyPaymentOutcome(context.Background(), event, payload)
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)
	assert.Equal(t, domain.OrderStatusPaid, repo.orders[resp.ID].Status)
	assert.Equal(t, versionAfterFirst, repo.orders[resp.ID].Version)
}

func TestApplyPaymentOutcomeCancelledOrderStaysCancelled(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)
	_, err = svc.CancelOrder(context.Background(), resp.ID, "user-1")
	require.NoError(t, err)

	event, payload := paymentCompleted(resp.ID)
	require.NoError(t, svc.ApplyPaymentOutcome(context.Background(), event, payload))
	assert.Equal(t, domain.OrderStatusCancelled, repo.orders[resp.ID].Status)

	// The event is consumed, so redelivery is a duplicate.
	err = svc.ApplyPaymentOutcome(context.Background(), event, payload)
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)
}

func TestApplyPaymentOutcomeFailureLeavesOrderPending(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)

	event := &domain.PaymentFailedEvent{OrderID: resp.ID, Reason: "card_declined"}
	payload, _ := json.Marshal(event)
	require.NoError(t, svc.ApplyPaymentOutcome(context.Background(), event, payload))

	assert.Equal(t, domain.OrderStatusPending, repo.orders[resp.ID].Status)

	err = svc.ApplyPaymentOutcome(context.Background(), event, payload)
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)
}

func TestApplyPaymentOutcomeUnknownOrderIsPermanent(t *testing.T) {
	svc, _, inbox := newTestService(t)

	event, payload := paymentCompleted("ghost-order")
	err := svc.ApplyPaymentOutcome(context.Background(), event, payload)
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))

	// The claim was released, so the record does not block a later retry.
	assert.Empty(t, inbox.statuses)
}

func TestApplyPaymentOutcomeRedeliveredSuccessForPaidOrderIsNoOp(t *testing.T) {
	svc, repo, inbox := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)
	repo.orders[resp.ID].Status = domain.OrderStatusProcessing

	event, payload := paymentCompleted(resp.ID)
	require.NoError(t, svc.ApplyPaymentOutcome(context.Background(), event, payload))
	assert.Equal(t, domain.OrderStatusProcessing, repo.orders[resp.ID].Status)
	assert.Equal(t, domain.InboxStatusProcessed, inbox.statuses[event.DedupKey()])
}

func TestAdvanceFulfillment(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.CreateOrder(context.Background(), "user-1", createOrderReq())
	require.NoError(t, err)
	repo.orders[resp.ID].Status = domain.OrderStatusPaid

	got, err := svc.AdvanceFulfillment(context.Background(), resp.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusProcessing), got.Status)

	_, err = svc.AdvanceFulfillment(context.Background(), resp.ID, domain.OrderStatusDelivered)
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
}
