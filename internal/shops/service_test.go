package shops

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/internal/entitlements"
	"github.com/dripspot/dripspot-backend/internal/memberships"
	"github.com/dripspot/dripspot-backend/internal/ownership"
	"github.com/dripspot/dripspot-backend/pkg/db/models"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

// The gorm repo must keep satisfying the resolver's narrow view of it.
var _ ownership.ShopRepository = Repository(nil)

type stubShopRepo struct {
	shopsByID map[uuid.UUID]*models.Shop
	updates   int
}

func newStubShopRepo(shopList ...*models.Shop) *stubShopRepo {
	repo := &stubShopRepo{shopsByID: make(map[uuid.UUID]*models.Shop)}
	for _, shop := range shopList {
		repo.shopsByID[shop.ID] = shop
	}
	return repo
}

func (s *stubShopRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubShopRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	return s.shopsByID[id], nil
}

func (s *stubShopRepo) FindByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]models.Shop, error) {
	panic("not implemented")
}

func (s *stubShopRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Shop, error) {
	return nil, nil
}

func (s *stubShopRepo) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Shop, error) {
	return nil, nil
}

func (s *stubShopRepo) Update(ctx context.Context, shop *models.Shop) error {
	s.updates++
	s.shopsByID[shop.ID] = shop
	return nil
}

type stubMembershipRepo struct{}

func (stubMembershipRepo) WithTx(tx *gorm.DB) memberships.Repository { return stubMembershipRepo{} }

func (stubMembershipRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	return nil, nil
}

func (stubMembershipRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	return nil, nil
}

func (stubMembershipRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Membership, error) {
	return nil, nil
}

func (stubMembershipRepo) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	return nil, nil
}

func (stubMembershipRepo) Create(ctx context.Context, membership *models.Membership) error {
	panic("not implemented")
}

func (stubMembershipRepo) Update(ctx context.Context, membership *models.Membership) error {
	panic("not implemented")
}

func newShopService(t *testing.T, repo *stubShopRepo) Service {
	t.Helper()
	resolver, err := ownership.NewResolver(repo, stubMembershipRepo{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Resolver: resolver,
		Policy:   entitlements.NewPolicy(0),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestBilling_Snapshot(t *testing.T) {
	ownerID := uuid.New()
	shop := &models.Shop{
		ID:                 uuid.New(),
		OwnerUserID:        ownerID,
		Tier:               enums.ShopTierPro,
		SubscriptionStatus: enums.SubscriptionStatusPastDue,
		DiscountEnabled:    true,
	}
	svc := newShopService(t, newStubShopRepo(shop))

	snapshot, err := svc.Billing(context.Background(), ownerID, shop.ID)
	if err != nil {
		t.Fatalf("billing: %v", err)
	}
	if snapshot.ShopID != shop.ID {
		t.Fatalf("wrong shop id")
	}
	if !snapshot.ProFeatures {
		t.Fatalf("past_due inside indefinite grace keeps pro features")
	}
	if snapshot.ProPlusFeatures {
		t.Fatalf("pro shop must not report pro_plus features")
	}
	if snapshot.DiscountActive {
		t.Fatalf("discount toggle on a pro shop must not be live")
	}
	if !snapshot.NeedsAttention {
		t.Fatalf("past_due must flag needs_attention")
	}
}

func TestBilling_RejectsForeignShop(t *testing.T) {
	shop := &models.Shop{ID: uuid.New(), OwnerUserID: uuid.New()}
	svc := newShopService(t, newStubShopRepo(shop))

	_, err := svc.Billing(context.Background(), uuid.New(), shop.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestToggleDiscount_RequiresProPlusEntitlement(t *testing.T) {
	ownerID := uuid.New()
	shop := &models.Shop{
		ID:                 uuid.New(),
		OwnerUserID:        ownerID,
		Tier:               enums.ShopTierPro,
		SubscriptionStatus: enums.SubscriptionStatusActive,
	}
	repo := newStubShopRepo(shop)
	svc := newShopService(t, repo)

	_, err := svc.ToggleDiscount(context.Background(), ownerID, shop.ID, true)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("rejected toggle must not write")
	}
}

func TestToggleDiscount_EnableAndDisable(t *testing.T) {
	ownerID := uuid.New()
	shop := &models.Shop{
		ID:                 uuid.New(),
		OwnerUserID:        ownerID,
		Tier:               enums.ShopTierProPlus,
		SubscriptionStatus: enums.SubscriptionStatusActive,
	}
	repo := newStubShopRepo(shop)
	svc := newShopService(t, repo)

	snapshot, err := svc.ToggleDiscount(context.Background(), ownerID, shop.ID, true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !snapshot.DiscountEnabled || !snapshot.DiscountActive {
		t.Fatalf("discount not enabled: %+v", snapshot)
	}
	if repo.updates != 1 {
		t.Fatalf("expected one write, got %d", repo.updates)
	}

	// Re-enabling is a no-op write-wise.
	if _, err := svc.ToggleDiscount(context.Background(), ownerID, shop.ID, true); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if repo.updates != 1 {
		t.Fatalf("no-op toggle must not write, got %d", repo.updates)
	}

	// Disabling works regardless of entitlement.
	shop.SubscriptionStatus = enums.SubscriptionStatusCanceled
	snapshot, err = svc.ToggleDiscount(context.Background(), ownerID, shop.ID, false)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if snapshot.DiscountEnabled {
		t.Fatalf("discount not disabled")
	}
}
