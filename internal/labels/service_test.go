package labels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/devicehub-backend/pkg/db"
	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox"
	"github.com/angelmondragon/devicehub-backend/pkg/shipengine"
	"github.com/angelmondragon/devicehub-backend/pkg/storage/gcs"
	"github.com/angelmondragon/devicehub-backend/pkg/types"
)

type memoryBlobs struct {
	objects map[string][]byte
	deletes []string
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}}
}

func (m *memoryBlobs) Upload(ctx context.Context, bucket, object, contentType string, body []byte) error {
	if contentType != "application/pdf" {
		return fmt.Errorf("unexpected content type %s", contentType)
	}
	m.objects[object] = body
	return nil
}

func (m *memoryBlobs) ListObjects(ctx context.Context, bucket, prefix string) ([]gcs.ObjectAttrs, error) {
	var out []gcs.ObjectAttrs
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, gcs.ObjectAttrs{Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryBlobs) DeleteObject(ctx context.Context, bucket, object string) error {
	m.deletes = append(m.deletes, object)
	delete(m.objects, object)
	return nil
}

func (m *memoryBlobs) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.example/%s/%s?ttl=%s", bucket, object, expires), nil
}

type stubCarrier struct {
	purchases int
	voids     []string
	voidErr   error
}

func (c *stubCarrier) PurchaseLabel(ctx context.Context, req shipengine.LabelRequest) (*shipengine.PurchasedLabel, error) {
	c.purchases++
	return &shipengine.PurchasedLabel{
		CarrierLabelID: fmt.Sprintf("se-%d", c.purchases),
		TrackingNumber: fmt.Sprintf("9400%d", c.purchases),
		PDF:            []byte("%PDF-1.7"),
	}, nil
}

func (c *stubCarrier) VoidLabel(ctx context.Context, carrierLabelID string) error {
	c.voids = append(c.voids, carrierLabelID)
	return c.voidErr
}

type stubOrders struct {
	order     *models.Order
	loadErr   error
	attachErr error
	attached  []uuid.UUID
}

func (o *stubOrders) LoadForLabel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if o.loadErr != nil {
		return nil, o.loadErr
	}
	return o.order, nil
}

func (o *stubOrders) AttachLabelWithTx(ctx context.Context, tx *gorm.DB, orderID, labelID uuid.UUID, now time.Time) error {
	if o.attachErr != nil {
		return o.attachErr
	}
	o.attached = append(o.attached, labelID)
	return nil
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	blobs   *memoryBlobs
	carrier *stubCarrier
	orders  *stubOrders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:labels_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), dbpkg.GormConfig())
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.Label{}, &models.OutboxEvent{}))

	f := &fixture{
		db:      conn,
		blobs:   newMemoryBlobs(),
		carrier: &stubCarrier{},
		orders: &stubOrders{order: &models.Order{
			ID:          uuid.New(),
			OrderNumber: "ORD-0000042",
			Status:      enums.OrderStatusProcessing,
			ShippingInfo: &types.ShippingInfo{
				Name: "Dana Reseller", Phone: "555-0100", Email: "dana@example.com",
				Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701",
			},
		}},
	}
	svc, err := NewService(ServiceParams{
		Repository:   NewRepository(conn),
		Tx:           dbpkg.FromGorm(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), nil),
		Orders:       f.orders,
		Carrier:      f.carrier,
		Storage:      f.blobs,
		Bucket:       "devicehub-labels",
		SignedURLTTL: time.Hour,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCreateLabelStoresArtifactAndRecordsLabel(t *testing.T) {
	f := newFixture(t)
	orderID := f.orders.order.ID

	result, err := f.svc.CreateLabel(context.Background(), orderID, ShippingDetails{})
	require.NoError(t, err)

	expectedPath := fmt.Sprintf("labels/%s/%s.pdf", orderID, result.LabelID)
	require.Equal(t, expectedPath, result.StoragePath)
	require.Contains(t, f.blobs.objects, expectedPath)
	require.Contains(t, result.SignedURL, expectedPath)
	require.Equal(t, "94001", result.TrackingNumber)
	require.Equal(t, []uuid.UUID{result.LabelID}, f.orders.attached)

	var stored models.Label
	require.NoError(t, f.db.First(&stored, "id = ?", result.LabelID).Error)
	require.Equal(t, enums.LabelStatusCreated, stored.Status)
	require.Equal(t, "se-1", *stored.CarrierLabelID)
	require.EqualValues(t, 1, f.events(t, enums.EventLabelCreated))
}

func TestCreateLabelRemovesArtifactWhenCommitFails(t *testing.T) {
	f := newFixture(t)
	f.orders.attachErr = pkgerrors.New(pkgerrors.CodeStateConflict, "label not allowed in current state")

	_, err := f.svc.CreateLabel(context.Background(), f.orders.order.ID, ShippingDetails{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Empty(t, f.blobs.objects)
	require.Len(t, f.blobs.deletes, 1)

	var count int64
	require.NoError(t, f.db.Model(&models.Label{}).Count(&count).Error)
	require.Zero(t, count)
	require.Zero(t, f.events(t, enums.EventLabelCreated))
}

func TestCreateLabelRejectsIneligibleOrder(t *testing.T) {
	f := newFixture(t)
	f.orders.loadErr = pkgerrors.New(pkgerrors.CodeStateConflict, "label not allowed in current state")

	_, err := f.svc.CreateLabel(context.Background(), uuid.New(), ShippingDetails{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Zero(t, f.carrier.purchases)
}

func TestVoidLabelTwiceSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, err := f.svc.CreateLabel(ctx, f.orders.order.ID, ShippingDetails{})
	require.NoError(t, err)
	other, err := f.svc.CreateLabel(ctx, f.orders.order.ID, ShippingDetails{})
	require.NoError(t, err)

	require.NoError(t, f.svc.VoidLabel(ctx, result.LabelID))
	require.NoError(t, f.svc.VoidLabel(ctx, result.LabelID))

	require.NotContains(t, f.blobs.objects, result.StoragePath)
	require.Contains(t, f.blobs.objects, other.StoragePath)
	require.Equal(t, []string{"se-1"}, f.carrier.voids)
	require.EqualValues(t, 1, f.events(t, enums.EventLabelVoided))

	got, err := f.svc.GetLabel(ctx, result.LabelID)
	require.NoError(t, err)
	require.Equal(t, enums.LabelStatusVoided, got.Status)
	require.NotNil(t, got.VoidedAt)
	require.Empty(t, got.SignedURL)
}

func TestVoidLabelToleratesMissingLabel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.VoidLabel(context.Background(), uuid.New()))
	require.Empty(t, f.carrier.voids)
}

func TestVoidLabelToleratesCarrierNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, err := f.svc.CreateLabel(ctx, f.orders.order.ID, ShippingDetails{})
	require.NoError(t, err)
	f.carrier.voidErr = shipengine.ErrLabelNotFound

	require.NoError(t, f.svc.VoidLabel(ctx, result.LabelID))

	got, err := f.svc.GetLabel(ctx, result.LabelID)
	require.NoError(t, err)
	require.Equal(t, enums.LabelStatusVoided, got.Status)
}

func TestVoidLabelCarrierFailureKeepsLabel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, err := f.svc.CreateLabel(ctx, f.orders.order.ID, ShippingDetails{})
	require.NoError(t, err)
	f.carrier.voidErr = errors.New("carrier unavailable")

	err = f.svc.VoidLabel(ctx, result.LabelID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	got, err := f.svc.GetLabel(ctx, result.LabelID)
	require.NoError(t, err)
	require.Equal(t, enums.LabelStatusCreated, got.Status)
}

func TestGetLabelReissuesSignedURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, err := f.svc.CreateLabel(ctx, f.orders.order.ID, ShippingDetails{})
	require.NoError(t, err)

	got, err := f.svc.GetLabel(ctx, result.LabelID)
	require.NoError(t, err)
	require.Contains(t, got.SignedURL, result.StoragePath)

	_, err = f.svc.GetLabel(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRecordTrackingWithTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, err := f.svc.CreateLabel(ctx, f.orders.order.ID, ShippingDetails{})
	require.NoError(t, err)

	client := dbpkg.FromGorm(f.db)
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		label, err := f.svc.RecordTrackingWithTx(ctx, tx, result.TrackingNumber, "IT")
		if err != nil {
			return err
		}
		require.Equal(t, result.LabelID, label.ID)
		return nil
	}))

	got, err := f.svc.GetLabel(ctx, result.LabelID)
	require.NoError(t, err)
	require.Equal(t, "IT", got.TrackingStatus)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.RecordTrackingWithTx(ctx, tx, "unknown", "IT")
		return err
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
