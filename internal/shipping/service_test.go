package shipping

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/internal/status"
	"github.com/closetline/marketplace/internal/testutil"
)

type fakeBroadcaster struct {
	keys   []string
	events []map[string]any
	err    error
}

func (f *fakeBroadcaster) Publish(ctx context.Context, key string, event map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.events = append(f.events, event)
	return nil
}

type fakeNotifier struct {
	statuses []status.Status
	labels   []uint
	err      error
}

func (f *fakeNotifier) NotifyStatus(ctx context.Context, order *models.Order, shipment *models.Shipment, newStatus status.Status) error {
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, newStatus)
	return nil
}

func (f *fakeNotifier) SendShippingLabel(ctx context.Context, order *models.Order, shipment *models.Shipment) error {
	if f.err != nil {
		return f.err
	}
	f.labels = append(f.labels, order.ID)
	return nil
}

type testEnv struct {
	DB        *gorm.DB
	Svc       *Service
	Broadcast *fakeBroadcaster
	Notify    *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	db := testutil.OpenTestDB(t)
	broadcast := &fakeBroadcaster{}
	notifier := &fakeNotifier{}
	svc := &Service{
		DB:        db,
		Rules:     status.NewRules(false),
		Broadcast: broadcast,
		Notify:    notifier,
	}
	return &testEnv{DB: db, Svc: svc, Broadcast: broadcast, Notify: notifier}
}

var orderSeq int

func (env *testEnv) seedOrder(t *testing.T, st status.Status, withShipment bool) *models.Order {
	t.Helper()
	orderSeq++

	buyer := models.User{Username: fmt.Sprintf("buyer%d", orderSeq), Email: fmt.Sprintf("buyer%d@test.dev", orderSeq)}
	seller := models.User{Username: fmt.Sprintf("seller%d", orderSeq), Email: fmt.Sprintf("seller%d@test.dev", orderSeq)}
	require.NoError(t, env.DB.Create(&buyer).Error)
	require.NoError(t, env.DB.Create(&seller).Error)

	order := models.Order{
		Number:   fmt.Sprintf("ORD-%04d", orderSeq),
		BuyerID:  buyer.ID,
		SellerID: seller.ID,
		Status:   st,
		Subtotal: decimal.NewFromInt(40),
		Tax:      decimal.NewFromInt(5),
		Total:    decimal.NewFromInt(45),
	}
	require.NoError(t, env.DB.Create(&order).Error)

	if withShipment {
		shipment := models.Shipment{
			OrderID: order.ID,
			Status:  st,
			Carrier: models.CarrierEvri,
		}
		require.NoError(t, env.DB.Create(&shipment).Error)
	}
	return &order
}

func (env *testEnv) seedConversation(t *testing.T, order *models.Order) *models.Conversation {
	t.Helper()
	conv := models.Conversation{
		OrderID:      order.ID,
		BuyerID:      order.BuyerID,
		SellerID:     order.SellerID,
		LastModified: time.Now().UTC().Add(-24 * time.Hour),
	}
	require.NoError(t, env.DB.Create(&conv).Error)
	return &conv
}

func TestAdvanceStatusSuccess(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Shipped, true)
	conv := env.seedConversation(t, order)

	shipment, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.InTransit, AdvanceOptions{})
	require.NoError(t, err)
	require.Equal(t, status.InTransit, shipment.Status)

	var gotShipment models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", order.ID).First(&gotShipment).Error)
	require.Equal(t, status.InTransit, gotShipment.Status)

	var gotOrder models.Order
	require.NoError(t, env.DB.First(&gotOrder, order.ID).Error)
	require.Equal(t, status.InTransit, gotOrder.Status)

	var gotConv models.Conversation
	require.NoError(t, env.DB.First(&gotConv, conv.ID).Error)
	require.True(t, gotConv.LastModified.After(conv.LastModified))

	require.Len(t, env.Broadcast.events, 1)
	event := env.Broadcast.events[0]
	require.Equal(t, "order_status_event", event["type"])
	require.Equal(t, order.ID, event["order_id"])
	require.Equal(t, string(status.InTransit), event["status"])
	require.Equal(t, conv.ID, event["conversation_id"])
	require.NotEmpty(t, event["event_id"])
	require.Equal(t, fmt.Sprint(conv.ID), env.Broadcast.keys[0])

	require.Equal(t, []status.Status{status.InTransit}, env.Notify.statuses)
}

func TestAdvanceStatusInvalidLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Pending, true)
	env.seedConversation(t, order)

	for i := 0; i < 2; i++ {
		_, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.Delivered, AdvanceOptions{})

		var invalid *status.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, status.Pending, invalid.From)
		require.Equal(t, status.Delivered, invalid.To)
	}

	var gotShipment models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", order.ID).First(&gotShipment).Error)
	require.Equal(t, status.Pending, gotShipment.Status)

	var gotOrder models.Order
	require.NoError(t, env.DB.First(&gotOrder, order.ID).Error)
	require.Equal(t, status.Pending, gotOrder.Status)

	require.Empty(t, env.Broadcast.events)
	require.Empty(t, env.Notify.statuses)
}

func TestAdvanceStatusNoShipment(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Confirmed, false)

	_, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.Shipped, AdvanceOptions{})
	require.ErrorIs(t, err, ErrNoShipment)

	var gotOrder models.Order
	require.NoError(t, env.DB.First(&gotOrder, order.ID).Error)
	require.Equal(t, status.Confirmed, gotOrder.Status)
}

func TestAdvanceStatusPersistsTracking(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Confirmed, true)

	_, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.Shipped, AdvanceOptions{
		TrackingNumber: "EV123456789GB",
		TrackingURL:    "https://track.evri.com/EV123456789GB",
	})
	require.NoError(t, err)

	var gotShipment models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", order.ID).First(&gotShipment).Error)
	require.Equal(t, status.Shipped, gotShipment.Status)
	require.Equal(t, "EV123456789GB", gotShipment.TrackingNumber)
	require.Equal(t, "https://track.evri.com/EV123456789GB", gotShipment.TrackingURL)
}

func TestAdvanceThenIllegalRollbackAttempt(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Shipped, true)

	_, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.InTransit, AdvanceOptions{})
	require.NoError(t, err)

	_, err = env.Svc.AdvanceStatus(context.Background(), order.ID, status.Pending, AdvanceOptions{})
	var invalid *status.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	var gotShipment models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", order.ID).First(&gotShipment).Error)
	require.Equal(t, status.InTransit, gotShipment.Status)
}

func TestAdvanceStatusLostRace(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Confirmed, true)
	env.seedConversation(t, order)

	// Sneak a competing transition in after AdvanceStatus has validated
	// against CONFIRMED but before its conditional write runs.
	flipped := false
	require.NoError(t, env.DB.Callback().Update().Before("gorm:update").Register("competing_transition", func(tx *gorm.DB) {
		if flipped {
			return
		}
		flipped = true
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE shipments SET status = ? WHERE order_id = ?", status.Cancelled, order.ID).Error
		require.NoError(t, err)
	}))
	t.Cleanup(func() {
		require.NoError(t, env.DB.Callback().Update().Remove("competing_transition"))
	})

	_, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.Shipped, AdvanceOptions{})
	require.ErrorIs(t, err, ErrStaleStatus)
	require.True(t, flipped)

	// The losing transition leaves no trace: the order was never touched and
	// nothing fanned out.
	var gotOrder models.Order
	require.NoError(t, env.DB.First(&gotOrder, order.ID).Error)
	require.Equal(t, status.Confirmed, gotOrder.Status)

	require.Empty(t, env.Broadcast.events)
	require.Empty(t, env.Notify.statuses)
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	env := newTestEnv(t)
	env.Notify.err = errors.New("smtp down")
	order := env.seedOrder(t, status.Confirmed, true)

	shipment, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.Shipped, AdvanceOptions{})
	require.NoError(t, err)
	require.Equal(t, status.Shipped, shipment.Status)
}

func TestBroadcastFailureDoesNotFailTransition(t *testing.T) {
	env := newTestEnv(t)
	env.Broadcast.err = errors.New("kafka unreachable")
	order := env.seedOrder(t, status.Confirmed, true)
	env.seedConversation(t, order)

	_, err := env.Svc.AdvanceStatus(context.Background(), order.ID, status.Shipped, AdvanceOptions{})
	require.NoError(t, err)

	var gotOrder models.Order
	require.NoError(t, env.DB.First(&gotOrder, order.ID).Error)
	require.Equal(t, status.Shipped, gotOrder.Status)
}

func TestProcessOrderShipmentIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)

	good1 := env.seedOrder(t, status.Confirmed, true)
	bad := env.seedOrder(t, status.Delivered, true) // DELIVERED -> SHIPPED is illegal
	good2 := env.seedOrder(t, status.Confirmed, true)

	orders := []models.Order{*good1, *bad, *good2}
	env.Svc.ProcessOrderShipment(context.Background(), orders, status.Shipped)

	var s1, s2, s3 models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", good1.ID).First(&s1).Error)
	require.NoError(t, env.DB.Where("order_id = ?", bad.ID).First(&s2).Error)
	require.NoError(t, env.DB.Where("order_id = ?", good2.ID).First(&s3).Error)

	require.Equal(t, status.Shipped, s1.Status)
	require.Equal(t, status.Delivered, s2.Status)
	require.Equal(t, status.Shipped, s3.Status)
}

func TestProcessOrderShipmentSkipsShipmentless(t *testing.T) {
	env := newTestEnv(t)

	withShipment := env.seedOrder(t, status.Confirmed, true)
	without := env.seedOrder(t, status.Confirmed, false)

	env.Svc.ProcessOrderShipment(context.Background(), []models.Order{*without, *withShipment}, status.Shipped)

	var gotOrder models.Order
	require.NoError(t, env.DB.First(&gotOrder, without.ID).Error)
	require.Equal(t, status.Confirmed, gotOrder.Status)

	var gotShipment models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", withShipment.ID).First(&gotShipment).Error)
	require.Equal(t, status.Shipped, gotShipment.Status)
}

func TestProcessOrderShipmentSendsLabelOnShipped(t *testing.T) {
	env := newTestEnv(t)

	order := env.seedOrder(t, status.Confirmed, true)
	env.Svc.ProcessOrderShipment(context.Background(), []models.Order{*order}, status.Shipped)
	require.Equal(t, []uint{order.ID}, env.Notify.labels)

	// Later stages do not resend labels.
	env.Notify.labels = nil
	env.Svc.ProcessOrderShipment(context.Background(), []models.Order{*order}, status.InTransit)
	require.Empty(t, env.Notify.labels)
}

func TestCreateShipment(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Confirmed, false)

	shipment, err := env.Svc.CreateShipment(context.Background(), order.ID, "12 Mill Lane, Leeds", models.CarrierDPD)
	require.NoError(t, err)
	require.Equal(t, status.Pending, shipment.Status)
	require.Equal(t, models.CarrierDPD, shipment.Carrier)
	require.Equal(t, "12 Mill Lane, Leeds", shipment.PickupAddress)

	var got models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", order.ID).First(&got).Error)
	require.Equal(t, shipment.ID, got.ID)
}

func TestGenerateShippingLabel(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Confirmed, true)

	labelURL, err := env.Svc.GenerateShippingLabel(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotEmpty(t, labelURL)

	var got models.Shipment
	require.NoError(t, env.DB.Where("order_id = ?", order.ID).First(&got).Error)
	require.Equal(t, labelURL, got.LabelURL)
}

func TestGenerateShippingLabelUnknownCarrier(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t, status.Confirmed, false)

	shipment := models.Shipment{OrderID: order.ID, Status: status.Pending, Carrier: "PIGEON_POST"}
	require.NoError(t, env.DB.Create(&shipment).Error)

	_, err := env.Svc.GenerateShippingLabel(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrUnknownCarrier)
}
