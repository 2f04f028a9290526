package settlements

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/internal/conversations"
	"github.com/lfgraphics/khadimemillat-backend/internal/items"
	"github.com/lfgraphics/khadimemillat-backend/internal/reservations"
	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
	"github.com/lfgraphics/khadimemillat-backend/pkg/logger"
	"github.com/lfgraphics/khadimemillat-backend/pkg/outbox"
	"github.com/lfgraphics/khadimemillat-backend/pkg/razorpay"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubGateway struct {
	failCreate bool
	created    int
}

func (g *stubGateway) KeyID() string { return "rzp_test_stub" }

func (g *stubGateway) CreateOrder(_ context.Context, params razorpay.OrderParams) (*razorpay.Order, error) {
	if g.failCreate {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")
	}
	g.created++
	return &razorpay.Order{
		ID:          fmt.Sprintf("order_stub_%d", g.created),
		AmountPaise: params.AmountPaise,
		Currency:    params.Currency,
		Receipt:     params.Receipt,
		Status:      "created",
	}, nil
}

func (g *stubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	if signature != stubSignature(orderID, paymentID) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature mismatch")
	}
	return nil
}

func stubSignature(orderID, paymentID string) string {
	return "sig:" + orderID + "|" + paymentID
}

func TestInitiatePurchaseCreatesHoldAndOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, 2, 10000)

	intent, err := env.svc.InitiatePurchase(ctx, InitiateInput{
		ItemID:   item.ID,
		BuyerID:  uuid.New(),
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if intent.AmountPaise != 10000 || intent.Currency != "INR" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.GatewayKeyID != "rzp_test_stub" {
		t.Fatalf("unexpected key id %q", intent.GatewayKeyID)
	}
	if got := env.availableQty(t, item.ID); got != 1 {
		t.Fatalf("expected stock 1, got %d", got)
	}

	order, err := env.gatewayOrders.FindByGatewayOrderID(ctx, intent.GatewayOrderID)
	if err != nil {
		t.Fatalf("load gateway order: %v", err)
	}
	if order.ReservationID != intent.Reservation.ID || order.Status != enums.GatewayOrderStatusCreated {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestInitiatePurchaseReleasesHoldWhenGatewayFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.gateway.failCreate = true
	ctx := context.Background()
	item := env.seedItem(t, 1, 10000)

	_, err := env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: uuid.New(), Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.availableQty(t, item.ID); got != 1 {
		t.Fatalf("expected hold released, stock=%d", got)
	}
}

func TestConfirmPaymentSettlesAtomically(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, 1, 50000)
	buyer := uuid.New()

	intent, err := env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: buyer, Quantity: 1})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	settlement, err := env.svc.ConfirmPayment(ctx, ConfirmInput{
		GatewayOrderID: intent.GatewayOrderID,
		PaymentID:      "pay_123",
		Signature:      stubSignature(intent.GatewayOrderID, "pay_123"),
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if settlement.AmountPaise != 50000 || settlement.BuyerID != buyer {
		t.Fatalf("unexpected settlement: %+v", settlement)
	}
	if settlement.Channel != enums.SettlementChannelDirect {
		t.Fatalf("unexpected channel %s", settlement.Channel)
	}

	reservation := env.loadReservation(t, intent.Reservation.ID)
	if reservation.Status != enums.ReservationStatusConsumed || reservation.ConsumedAt == nil {
		t.Fatalf("reservation not consumed: %+v", reservation)
	}

	order, err := env.gatewayOrders.FindByGatewayOrderID(ctx, intent.GatewayOrderID)
	if err != nil {
		t.Fatalf("load gateway order: %v", err)
	}
	if order.Status != enums.GatewayOrderStatusVerified || order.PaymentID == nil || *order.PaymentID != "pay_123" {
		t.Fatalf("unexpected order state: %+v", order)
	}

	var loadedItem models.Item
	if err := env.db.First(&loadedItem, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !loadedItem.Sold || loadedItem.AvailableQty != 0 {
		t.Fatalf("expected item sold out: %+v", loadedItem)
	}

	env.assertOutboxEvent(t, enums.EventSettlementRecorded, settlement.ID)
	env.assertOutboxEvent(t, enums.EventItemSoldOut, item.ID)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, 1, 50000)

	intent, err := env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: uuid.New(), Quantity: 1})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirm := ConfirmInput{
		GatewayOrderID: intent.GatewayOrderID,
		PaymentID:      "pay_once",
		Signature:      stubSignature(intent.GatewayOrderID, "pay_once"),
	}
	first, err := env.svc.ConfirmPayment(ctx, confirm)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := env.svc.ConfirmPayment(ctx, confirm)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same settlement, got %s and %s", first.ID, second.ID)
	}

	var count int64
	if err := env.db.Model(&models.Settlement{}).
		Where("reservation_id = ?", intent.Reservation.ID).Count(&count).Error; err != nil {
		t.Fatalf("count settlements: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single settlement row, got %d", count)
	}
}

func TestConfirmPaymentRejectsBadSignatureKeepsHold(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, 1, 50000)

	intent, err := env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: uuid.New(), Quantity: 1})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	_, err = env.svc.ConfirmPayment(ctx, ConfirmInput{
		GatewayOrderID: intent.GatewayOrderID,
		PaymentID:      "pay_bad",
		Signature:      "forged",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("unexpected error: %v", err)
	}

	reservation := env.loadReservation(t, intent.Reservation.ID)
	if reservation.Status != enums.ReservationStatusHeld {
		t.Fatalf("hold disturbed by bad signature: %s", reservation.Status)
	}

	// The real proof still settles afterwards.
	if _, err := env.svc.ConfirmPayment(ctx, ConfirmInput{
		GatewayOrderID: intent.GatewayOrderID,
		PaymentID:      "pay_bad",
		Signature:      stubSignature(intent.GatewayOrderID, "pay_bad"),
	}); err != nil {
		t.Fatalf("confirm with valid signature: %v", err)
	}
}

func TestConfirmPaymentOnExpiredHoldReclaimsStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, 1, 50000)

	intent, err := env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: uuid.New(), Quantity: 1})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	env.forceExpiry(t, intent.Reservation.ID, -time.Minute)

	_, err = env.svc.ConfirmPayment(ctx, ConfirmInput{
		GatewayOrderID: intent.GatewayOrderID,
		PaymentID:      "pay_late",
		Signature:      stubSignature(intent.GatewayOrderID, "pay_late"),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := env.availableQty(t, item.ID); got != 1 {
		t.Fatalf("expected stock reclaimed, got %d", got)
	}
	reservation := env.loadReservation(t, intent.Reservation.ID)
	if reservation.Status != enums.ReservationStatusExpired {
		t.Fatalf("unexpected status %s", reservation.Status)
	}
	order, err := env.gatewayOrders.FindByGatewayOrderID(ctx, intent.GatewayOrderID)
	if err != nil {
		t.Fatalf("load gateway order: %v", err)
	}
	if order.Status != enums.GatewayOrderStatusFailed {
		t.Fatalf("unexpected order status %s", order.Status)
	}
}

func TestExpiredHoldLetsSecondBuyerWin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, 1, 50000)
	buyerA := uuid.New()
	buyerB := uuid.New()

	intentA, err := env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: buyerA, Quantity: 1})
	if err != nil {
		t.Fatalf("initiate for buyer A: %v", err)
	}

	// Buyer B cannot reserve while A holds the last unit.
	_, err = env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: buyerB, Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error for buyer B: %v", err)
	}

	env.forceExpiry(t, intentA.Reservation.ID, -time.Minute)
	if _, err := env.svcReservations.SweepExpired(ctx, 10); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	intentB, err := env.svc.InitiatePurchase(ctx, InitiateInput{ItemID: item.ID, BuyerID: buyerB, Quantity: 1})
	if err != nil {
		t.Fatalf("initiate for buyer B after expiry: %v", err)
	}
	settlement, err := env.svc.ConfirmPayment(ctx, ConfirmInput{
		GatewayOrderID: intentB.GatewayOrderID,
		PaymentID:      "pay_b",
		Signature:      stubSignature(intentB.GatewayOrderID, "pay_b"),
	})
	if err != nil {
		t.Fatalf("confirm for buyer B: %v", err)
	}
	if settlement.BuyerID != buyerB {
		t.Fatalf("settlement recorded for wrong buyer: %+v", settlement)
	}

	// Buyer A's stale confirm cannot claim the already sold unit.
	_, err = env.svc.ConfirmPayment(ctx, ConfirmInput{
		GatewayOrderID: intentA.GatewayOrderID,
		PaymentID:      "pay_a",
		Signature:      stubSignature(intentA.GatewayOrderID, "pay_a"),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error for buyer A confirm: %v", err)
	}
}

func TestChatPurchasePostsMarkers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, 1, 30000)
	conversationID := uuid.New()

	intent, err := env.svc.InitiatePurchase(ctx, InitiateInput{
		ItemID:         item.ID,
		BuyerID:        uuid.New(),
		Quantity:       1,
		ConversationID: &conversationID,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := env.svcConversations.AttachPaymentRequest(ctx, conversations.AttachInput{
		ConversationID: conversationID,
		ItemID:         item.ID,
		ReservationID:  intent.Reservation.ID,
		AmountPaise:    intent.AmountPaise,
	}); err != nil {
		t.Fatalf("attach payment request: %v", err)
	}

	settlement, err := env.svc.ConfirmPayment(ctx, ConfirmInput{
		GatewayOrderID: intent.GatewayOrderID,
		PaymentID:      "pay_chat",
		Signature:      stubSignature(intent.GatewayOrderID, "pay_chat"),
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if settlement.Channel != enums.SettlementChannelChat {
		t.Fatalf("unexpected channel %s", settlement.Channel)
	}

	markers, err := env.svcConversations.ListMarkers(ctx, conversationID)
	if err != nil {
		t.Fatalf("list markers: %v", err)
	}
	if len(markers) != 2 {
		t.Fatalf("expected request and completion markers, got %d", len(markers))
	}
	if markers[0].Kind != enums.PaymentMarkerRequest || markers[0].Status != enums.PaymentMarkerStatusPaid {
		t.Fatalf("unexpected request marker: %+v", markers[0])
	}
	if markers[1].Kind != enums.PaymentMarkerCompleted || markers[1].Status != enums.PaymentMarkerStatusPaid {
		t.Fatalf("unexpected completion marker: %+v", markers[1])
	}
}

type testEnv struct {
	db               *gorm.DB
	svc              Service
	svcReservations  reservations.Service
	svcConversations conversations.Service
	gateway          *stubGateway
	gatewayOrders    GatewayOrderRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:settlements_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("extract sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Item{},
		&models.Reservation{},
		&models.GatewayOrder{},
		&models.Settlement{},
		&models.ConversationMessage{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "settlements-test"})
	publisher := outbox.NewService(outbox.NewRepository(db), logg)
	tx := gormTxRunner{db: db}
	itemsRepo := items.NewRepository(db)

	reservationSvc, err := reservations.NewService(tx, reservations.NewRepository(db), itemsRepo, publisher, logg, 15*time.Minute)
	if err != nil {
		t.Fatalf("new reservation service: %v", err)
	}
	conversationSvc, err := conversations.NewService(tx, conversations.NewRepository(db), reservationSvc, publisher, logg)
	if err != nil {
		t.Fatalf("new conversation service: %v", err)
	}

	gw := &stubGateway{}
	gatewayOrders := NewGatewayOrderRepository(db)
	svc, err := NewService(tx, NewRepository(db), gatewayOrders, itemsRepo, reservationSvc, conversationSvc, gw, publisher, logg)
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}
	return &testEnv{
		db:               db,
		svc:              svc,
		svcReservations:  reservationSvc,
		svcConversations: conversationSvc,
		gateway:          gw,
		gatewayOrders:    gatewayOrders,
	}
}

func (e *testEnv) seedItem(t *testing.T, qty int, pricePaise int64) models.Item {
	t.Helper()
	item := models.Item{
		ID:               uuid.New(),
		Title:            "Donated item",
		TotalQty:         qty,
		AvailableQty:     qty,
		ListedPricePaise: &pricePaise,
		Listed:           true,
	}
	if err := e.db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func (e *testEnv) availableQty(t *testing.T, itemID uuid.UUID) int {
	t.Helper()
	var item models.Item
	if err := e.db.First(&item, "id = ?", itemID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	return item.AvailableQty
}

func (e *testEnv) loadReservation(t *testing.T, id uuid.UUID) models.Reservation {
	t.Helper()
	var reservation models.Reservation
	if err := e.db.First(&reservation, "id = ?", id).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	return reservation
}

func (e *testEnv) forceExpiry(t *testing.T, reservationID uuid.UUID, offset time.Duration) {
	t.Helper()
	if err := e.db.Model(&models.Reservation{}).Where("id = ?", reservationID).
		UpdateColumn("expires_at", time.Now().Add(offset)).Error; err != nil {
		t.Fatalf("force expiry: %v", err)
	}
}

func (e *testEnv) assertOutboxEvent(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) {
	t.Helper()
	var count int64
	err := e.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 %s event for %s, got %d", eventType, aggregateID, count)
	}
}
