package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/internal/catalog"
	"github.com/dripspot/dripspot-backend/internal/ledger"
	"github.com/dripspot/dripspot-backend/internal/memberships"
	"github.com/dripspot/dripspot-backend/internal/shops"
	"github.com/dripspot/dripspot-backend/internal/subscriptions"
	"github.com/dripspot/dripspot-backend/pkg/config"
	"github.com/dripspot/dripspot-backend/pkg/db/models"
	"github.com/dripspot/dripspot-backend/pkg/enums"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubShopRepo struct {
	shopsByID map[uuid.UUID]*models.Shop
}

func newStubShopRepo(shopList ...*models.Shop) *stubShopRepo {
	repo := &stubShopRepo{shopsByID: make(map[uuid.UUID]*models.Shop)}
	for _, shop := range shopList {
		repo.shopsByID[shop.ID] = shop
	}
	return repo
}

func (s *stubShopRepo) WithTx(tx *gorm.DB) shops.Repository { return s }

func (s *stubShopRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	return s.shopsByID[id], nil
}

func (s *stubShopRepo) FindByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]models.Shop, error) {
	panic("not implemented")
}

func (s *stubShopRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Shop, error) {
	for _, shop := range s.shopsByID {
		if shop.StripeCustomerID != nil && *shop.StripeCustomerID == customerID {
			return shop, nil
		}
	}
	return nil, nil
}

func (s *stubShopRepo) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Shop, error) {
	for _, shop := range s.shopsByID {
		if shop.StripeSubscriptionID != nil && *shop.StripeSubscriptionID == subscriptionID {
			return shop, nil
		}
	}
	return nil, nil
}

func (s *stubShopRepo) Update(ctx context.Context, shop *models.Shop) error {
	s.shopsByID[shop.ID] = shop
	return nil
}

type stubMembershipRepo struct {
	byID map[uuid.UUID]*models.Membership
}

func newStubMembershipRepo(membershipList ...*models.Membership) *stubMembershipRepo {
	repo := &stubMembershipRepo{byID: make(map[uuid.UUID]*models.Membership)}
	for _, membership := range membershipList {
		repo.byID[membership.ID] = membership
	}
	return repo
}

func (s *stubMembershipRepo) WithTx(tx *gorm.DB) memberships.Repository { return s }

func (s *stubMembershipRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	return s.byID[id], nil
}

func (s *stubMembershipRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	for _, membership := range s.byID {
		if membership.UserID == userID {
			return membership, nil
		}
	}
	return nil, nil
}

func (s *stubMembershipRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Membership, error) {
	for _, membership := range s.byID {
		if membership.StripeCustomerID != nil && *membership.StripeCustomerID == customerID {
			return membership, nil
		}
	}
	return nil, nil
}

func (s *stubMembershipRepo) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	for _, membership := range s.byID {
		if membership.StripeSubscriptionID != nil && *membership.StripeSubscriptionID == subscriptionID {
			return membership, nil
		}
	}
	return nil, nil
}

func (s *stubMembershipRepo) Create(ctx context.Context, membership *models.Membership) error {
	panic("not implemented")
}

func (s *stubMembershipRepo) Update(ctx context.Context, membership *models.Membership) error {
	s.byID[membership.ID] = membership
	return nil
}

type stubLedger struct {
	seen map[string]bool
}

func newStubLedger() *stubLedger {
	return &stubLedger{seen: make(map[string]bool)}
}

func (s *stubLedger) WithTx(tx *gorm.DB) ledger.Service { return s }

func (s *stubLedger) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	if s.seen[eventID] {
		return true, nil
	}
	s.seen[eventID] = true
	return false, nil
}

func (s *stubLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	return s.seen[eventID], nil
}

type stubStripeClient struct {
	getCalls int
	response *stripe.Subscription
}

func (s *stubStripeClient) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.getCalls++
	return s.response, nil
}

func (s *stubStripeClient) Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	panic("not implemented")
}

func (s *stubStripeClient) Cancel(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	panic("not implemented")
}

func strPtr(v string) *string { return &v }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	built, err := catalog.New(config.StripeConfig{
		PriceShopProMonthly:     "price_shop_pro_m",
		PriceShopProPlusMonthly: "price_shop_pp_m",
		PriceMembershipMonthly:  "price_member_m",
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return built
}

func newTestService(t *testing.T, shopRepo *stubShopRepo, membershipRepo *stubMembershipRepo, eventLedger *stubLedger, client *stubStripeClient) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		ShopRepo:          shopRepo,
		MembershipRepo:    membershipRepo,
		Ledger:            eventLedger,
		Catalog:           testCatalog(t),
		StripeClient:      client,
		TransactionRunner: stubTxRunner{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func subscriptionWithMetadata(id string, status stripe.SubscriptionStatus, entityID uuid.UUID, entityType enums.EntityType, priceID string, periodEnd int64) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Status:   status,
		Customer: &stripe.Customer{ID: "cus_" + id},
		Metadata: map[string]string{
			subscriptions.MetadataKeyEntityID:   entityID.String(),
			subscriptions.MetadataKeyEntityType: entityType.String(),
		},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodEnd: periodEnd,
					Price:            &stripe.Price{ID: priceID},
				},
			},
		},
	}
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub *stripe.Subscription) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal subscription: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEvent_CheckoutCompletedActivatesShop(t *testing.T) {
	shop := &models.Shop{ID: uuid.New(), OwnerUserID: uuid.New(), Tier: enums.ShopTierFree}
	shopRepo := newStubShopRepo(shop)
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	client := &stubStripeClient{
		response: subscriptionWithMetadata("sub_new", stripe.SubscriptionStatusActive, shop.ID, enums.EntityTypeShop, "price_shop_pro_m", periodEnd),
	}
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), client)

	event := &stripe.Event{
		ID:   "evt_checkout",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{
			Object: map[string]interface{}{"subscription": "sub_new"},
		},
	}

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}
	if client.getCalls != 1 {
		t.Fatalf("expected one provider fetch, got %d", client.getCalls)
	}

	stored := shopRepo.shopsByID[shop.ID]
	if stored.Tier != enums.ShopTierPro {
		t.Fatalf("tier = %s, want pro", stored.Tier)
	}
	if stored.SubscriptionStatus != enums.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", stored.SubscriptionStatus)
	}
	if stored.StripeSubscriptionID == nil || *stored.StripeSubscriptionID != "sub_new" {
		t.Fatalf("subscription id not recorded")
	}
	if stored.StripeCustomerID == nil || *stored.StripeCustomerID != "cus_sub_new" {
		t.Fatalf("customer id not recorded")
	}
	if stored.CurrentPeriodEnd == nil || stored.CurrentPeriodEnd.Unix() != periodEnd {
		t.Fatalf("period end not recorded")
	}
}

func TestHandleEvent_CheckoutCompletedWithoutSubscription(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, newStubShopRepo(), newStubMembershipRepo(), newStubLedger(), client)

	event := &stripe.Event{
		ID:   "evt_onetime",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Object: map[string]interface{}{}},
	}
	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}
	if client.getCalls != 0 {
		t.Fatalf("one-time session must not fetch a subscription")
	}
}

func TestHandleEvent_SubscriptionUpdatedRenewal(t *testing.T) {
	oldEnd := time.Now().UTC().Truncate(time.Second)
	shop := &models.Shop{
		ID:                   uuid.New(),
		OwnerUserID:          uuid.New(),
		Tier:                 enums.ShopTierPro,
		SubscriptionStatus:   enums.SubscriptionStatusActive,
		StripeSubscriptionID: strPtr("sub_renew"),
		CurrentPeriodEnd:     &oldEnd,
	}
	shopRepo := newStubShopRepo(shop)
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), &stubStripeClient{})

	newEnd := oldEnd.Add(30 * 24 * time.Hour).Unix()
	sub := subscriptionWithMetadata("sub_renew", stripe.SubscriptionStatusActive, shop.ID, enums.EntityTypeShop, "price_shop_pro_m", newEnd)
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub)

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}

	stored := shopRepo.shopsByID[shop.ID]
	if stored.CurrentPeriodEnd == nil || stored.CurrentPeriodEnd.Unix() != newEnd {
		t.Fatalf("period end not advanced")
	}
	if stored.Tier != enums.ShopTierPro {
		t.Fatalf("tier must be unchanged on renewal")
	}
}

func TestHandleEvent_SubscriptionDeletedDowngradesShop(t *testing.T) {
	shop := &models.Shop{
		ID:                   uuid.New(),
		OwnerUserID:          uuid.New(),
		Tier:                 enums.ShopTierProPlus,
		SubscriptionStatus:   enums.SubscriptionStatusActive,
		DiscountEnabled:      true,
		StripeSubscriptionID: strPtr("sub_gone"),
	}
	shopRepo := newStubShopRepo(shop)
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), &stubStripeClient{})

	sub := subscriptionWithMetadata("sub_gone", stripe.SubscriptionStatusCanceled, shop.ID, enums.EntityTypeShop, "price_shop_pp_m", 0)
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, sub)

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}

	stored := shopRepo.shopsByID[shop.ID]
	if stored.Tier != enums.ShopTierFree {
		t.Fatalf("deleted subscription must drop the shop to free")
	}
	if stored.SubscriptionStatus != enums.SubscriptionStatusCanceled {
		t.Fatalf("status = %s, want canceled", stored.SubscriptionStatus)
	}
	if stored.DiscountEnabled {
		t.Fatalf("discount must be disabled on downgrade")
	}
}

func TestHandleEvent_SubscriptionDeletedClearsPendingCancel(t *testing.T) {
	shop := &models.Shop{
		ID:                   uuid.New(),
		OwnerUserID:          uuid.New(),
		Tier:                 enums.ShopTierPro,
		SubscriptionStatus:   enums.SubscriptionStatusActive,
		CancelAtPeriodEnd:    true,
		StripeSubscriptionID: strPtr("sub_elapsed"),
	}
	shopRepo := newStubShopRepo(shop)
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), &stubStripeClient{})

	// When a scheduled cancellation elapses the deletion event still carries
	// cancel_at_period_end=true on the subscription object.
	sub := subscriptionWithMetadata("sub_elapsed", stripe.SubscriptionStatusCanceled, shop.ID, enums.EntityTypeShop, "price_shop_pro_m", 0)
	sub.CancelAtPeriodEnd = true
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, sub)

	if _, err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	stored := shopRepo.shopsByID[shop.ID]
	if stored.SubscriptionStatus != enums.SubscriptionStatusCanceled {
		t.Fatalf("status = %s, want canceled", stored.SubscriptionStatus)
	}
	if stored.CancelAtPeriodEnd {
		t.Fatalf("canceled subscription must not keep cancel_at_period_end set")
	}
	if stored.Tier != enums.ShopTierFree {
		t.Fatalf("tier = %s, want free", stored.Tier)
	}
}

func TestHandleEvent_MembershipDeletedClearsPendingCancel(t *testing.T) {
	membership := &models.Membership{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		Tier:                 enums.MembershipTierActive,
		SubscriptionStatus:   enums.SubscriptionStatusActive,
		CancelAtPeriodEnd:    true,
		StripeSubscriptionID: strPtr("sub_member_gone"),
	}
	membershipRepo := newStubMembershipRepo(membership)
	svc := newTestService(t, newStubShopRepo(), membershipRepo, newStubLedger(), &stubStripeClient{})

	sub := subscriptionWithMetadata("sub_member_gone", stripe.SubscriptionStatusCanceled, membership.ID, enums.EntityTypeMembership, "price_member_m", 0)
	sub.CancelAtPeriodEnd = true
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, sub)

	if _, err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	stored := membershipRepo.byID[membership.ID]
	if stored.CancelAtPeriodEnd {
		t.Fatalf("canceled membership must not keep cancel_at_period_end set")
	}
	if stored.Tier != enums.MembershipTierNone {
		t.Fatalf("tier = %s, want none", stored.Tier)
	}
}

func TestHandleEvent_MetadataTierOutranksPriceLookup(t *testing.T) {
	shop := &models.Shop{ID: uuid.New(), OwnerUserID: uuid.New(), Tier: enums.ShopTierFree}
	shopRepo := newStubShopRepo(shop)
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), &stubStripeClient{})

	// Metadata says pro while the price id maps to pro_plus; the tier stamped
	// at checkout wins.
	sub := subscriptionWithMetadata("sub_mixed", stripe.SubscriptionStatusActive, shop.ID, enums.EntityTypeShop, "price_shop_pp_m", time.Now().Add(30*24*time.Hour).Unix())
	sub.Metadata[subscriptions.MetadataKeyTier] = "pro"
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, sub)

	if _, err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	stored := shopRepo.shopsByID[shop.ID]
	if stored.Tier != enums.ShopTierPro {
		t.Fatalf("tier = %s, want pro from metadata", stored.Tier)
	}
}

func TestHandleEvent_PaymentFailedMarksPastDueLocally(t *testing.T) {
	shop := &models.Shop{
		ID:                   uuid.New(),
		OwnerUserID:          uuid.New(),
		Tier:                 enums.ShopTierPro,
		SubscriptionStatus:   enums.SubscriptionStatusActive,
		StripeSubscriptionID: strPtr("sub_late"),
	}
	shopRepo := newStubShopRepo(shop)
	client := &stubStripeClient{}
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), client)

	event := &stripe.Event{
		ID:   "evt_failed",
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{Object: map[string]interface{}{"subscription": "sub_late"}},
	}

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}
	if client.getCalls != 0 {
		t.Fatalf("payment failure must not fetch from the provider")
	}

	stored := shopRepo.shopsByID[shop.ID]
	if stored.SubscriptionStatus != enums.SubscriptionStatusPastDue {
		t.Fatalf("status = %s, want past_due", stored.SubscriptionStatus)
	}
	if stored.Tier != enums.ShopTierPro {
		t.Fatalf("past_due must keep the tier")
	}
}

func TestHandleEvent_PaymentSucceededRefetchesSubscription(t *testing.T) {
	shop := &models.Shop{
		ID:                   uuid.New(),
		OwnerUserID:          uuid.New(),
		Tier:                 enums.ShopTierPro,
		SubscriptionStatus:   enums.SubscriptionStatusPastDue,
		StripeSubscriptionID: strPtr("sub_paid"),
	}
	shopRepo := newStubShopRepo(shop)
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	client := &stubStripeClient{
		response: subscriptionWithMetadata("sub_paid", stripe.SubscriptionStatusActive, shop.ID, enums.EntityTypeShop, "price_shop_pro_m", periodEnd),
	}
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), client)

	event := &stripe.Event{
		ID:   "evt_paid",
		Type: stripe.EventTypeInvoicePaymentSucceeded,
		Data: &stripe.EventData{Object: map[string]interface{}{"subscription": "sub_paid"}},
	}

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}
	if client.getCalls != 1 {
		t.Fatalf("expected one provider fetch, got %d", client.getCalls)
	}
	if shopRepo.shopsByID[shop.ID].SubscriptionStatus != enums.SubscriptionStatusActive {
		t.Fatalf("successful payment must restore active status")
	}
}

func TestHandleEvent_ActivatesMembership(t *testing.T) {
	membership := &models.Membership{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Tier:   enums.MembershipTierNone,
	}
	membershipRepo := newStubMembershipRepo(membership)
	svc := newTestService(t, newStubShopRepo(), membershipRepo, newStubLedger(), &stubStripeClient{})

	sub := subscriptionWithMetadata("sub_club", stripe.SubscriptionStatusActive, membership.ID, enums.EntityTypeMembership, "price_member_m", time.Now().Add(30*24*time.Hour).Unix())
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, sub)

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}

	stored := membershipRepo.byID[membership.ID]
	if stored.Tier != enums.MembershipTierActive {
		t.Fatalf("membership not activated")
	}
	if stored.StripeSubscriptionID == nil || *stored.StripeSubscriptionID != "sub_club" {
		t.Fatalf("subscription id not recorded")
	}
}

func TestHandleEvent_DuplicateEventSkipsSideEffects(t *testing.T) {
	shop := &models.Shop{ID: uuid.New(), OwnerUserID: uuid.New(), Tier: enums.ShopTierFree}
	shopRepo := newStubShopRepo(shop)
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), &stubStripeClient{})

	sub := subscriptionWithMetadata("sub_dup", stripe.SubscriptionStatusActive, shop.ID, enums.EntityTypeShop, "price_shop_pro_m", 0)
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, sub)

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("first delivery: outcome=%s err=%v", outcome, err)
	}
	if shopRepo.shopsByID[shop.ID].Tier != enums.ShopTierPro {
		t.Fatalf("first delivery must apply")
	}

	// Reset the shop to prove the replay changes nothing.
	shopRepo.shopsByID[shop.ID].Tier = enums.ShopTierFree
	outcome, err = svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %s, want duplicate", outcome)
	}
	if shopRepo.shopsByID[shop.ID].Tier != enums.ShopTierFree {
		t.Fatalf("replay must not reapply side effects")
	}
}

func TestHandleEvent_UnknownTypeAcknowledged(t *testing.T) {
	eventLedger := newStubLedger()
	svc := newTestService(t, newStubShopRepo(), newStubMembershipRepo(), eventLedger, &stubStripeClient{})

	event := &stripe.Event{
		ID:   "evt_unknown",
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{},
	}
	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeUnhandled {
		t.Fatalf("outcome = %s, want unhandled", outcome)
	}
	if !eventLedger.seen["evt_unknown"] {
		t.Fatalf("unhandled events must still land in the ledger")
	}
}

func TestHandleEvent_MetadataMissingFallsBackToSubscriptionLookup(t *testing.T) {
	shop := &models.Shop{
		ID:                   uuid.New(),
		OwnerUserID:          uuid.New(),
		Tier:                 enums.ShopTierFree,
		StripeSubscriptionID: strPtr("sub_legacy"),
	}
	shopRepo := newStubShopRepo(shop)
	svc := newTestService(t, shopRepo, newStubMembershipRepo(), newStubLedger(), &stubStripeClient{})

	sub := &stripe.Subscription{
		ID:     "sub_legacy",
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_shop_pro_m"}},
			},
		},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub)

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}
	if shopRepo.shopsByID[shop.ID].Tier != enums.ShopTierPro {
		t.Fatalf("fallback lookup must still apply the sync")
	}
}

func TestHandleEvent_UnresolvableSubscriptionAcked(t *testing.T) {
	eventLedger := newStubLedger()
	svc := newTestService(t, newStubShopRepo(), newStubMembershipRepo(), eventLedger, &stubStripeClient{})

	sub := &stripe.Subscription{
		ID:     "sub_stranger",
		Status: stripe.SubscriptionStatusActive,
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub)

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("unresolvable subscription must be acknowledged: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s", outcome)
	}
	if !eventLedger.seen[event.ID] {
		t.Fatalf("acknowledged event must still land in the ledger")
	}
}

func TestHandleEvent_RejectsNilEvent(t *testing.T) {
	svc := newTestService(t, newStubShopRepo(), newStubMembershipRepo(), newStubLedger(), &stubStripeClient{})
	if _, err := svc.HandleEvent(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil event")
	}
}
