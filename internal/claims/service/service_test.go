package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vitae/internal/claims/cache"
	claims "vitae/internal/claims/models"
	"vitae/internal/claims/service"
	"vitae/internal/events"
	"vitae/internal/reward/bank"
	rewardservice "vitae/internal/reward/service"
	"vitae/internal/storage"
	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
	"vitae/pkg/requestcontext"
)

// stubRewardHook records invocations and optionally fails or hands back an
// event, standing in for the reward controller.
type stubRewardHook struct {
	mu        sync.Mutex
	claimants []id.AccountID
	event     *events.Event
	err       error
}

func (h *stubRewardHook) AfterClaim(_ context.Context, _ storage.Tx, claimant id.AccountID) (*events.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	h.claimants = append(h.claimants, claimant)
	return h.event, nil
}

func (h *stubRewardHook) calls() []id.AccountID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]id.AccountID, len(h.claimants))
	copy(out, h.claimants)
	return out
}

// stubCache records deletions so tests can assert invalidation.
type stubCache struct {
	mu      sync.Mutex
	deleted []string
}

func (c *stubCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (c *stubCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (c *stubCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, key)
	return nil
}
func (c *stubCache) Clear(context.Context) error { return nil }

func (c *stubCache) deletions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.deleted))
	copy(out, c.deleted)
	return out
}

type ClaimServiceSuite struct {
	suite.Suite
	store     *storage.Memory
	rewards   *stubRewardHook
	log       *events.Log
	publisher *events.Publisher
	cache     *stubCache
	service   *service.Service
	alice     id.AccountID
	bob       id.AccountID
}

func TestClaimServiceSuite(t *testing.T) {
	suite.Run(t, new(ClaimServiceSuite))
}

func (s *ClaimServiceSuite) SetupTest() {
	s.store = storage.NewMemory()
	s.rewards = &stubRewardHook{}
	s.log = events.NewLog()
	s.publisher = events.NewPublisher(s.log)
	s.cache = &stubCache{}
	s.alice = id.NewAccountID()
	s.bob = id.NewAccountID()

	svc, err := service.New(s.store, s.rewards, s.publisher,
		service.WithCache(s.cache),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc
}

// as returns a context authenticated as the given account.
func (s *ClaimServiceSuite) as(account id.AccountID) context.Context {
	return requestcontext.WithAccount(context.Background(), account)
}

func (s *ClaimServiceSuite) storedClaim(fp id.Fingerprint) (claims.Claim, bool) {
	var (
		claim claims.Claim
		ok    bool
	)
	err := s.store.View(context.Background(), func(_ context.Context, tx storage.ReadTx) error {
		var err error
		claim, ok, err = tx.Claim(fp)
		return err
	})
	s.Require().NoError(err)
	return claim, ok
}

func (s *ClaimServiceSuite) submitAs(account id.AccountID, category claims.Category, content string) claims.Claim {
	claim, err := s.service.Submit(s.as(account), category, []byte(content), []byte("https://proof.example"))
	s.Require().NoError(err)
	return claim
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func (s *ClaimServiceSuite) TestNew_RequiresDependencies() {
	_, err := service.New(nil, s.rewards, s.publisher)
	s.Error(err)

	_, err = service.New(s.store, nil, s.publisher)
	s.Error(err)

	_, err = service.New(s.store, s.rewards, nil)
	s.Error(err)
}

// -----------------------------------------------------------------------------
// Submit
// -----------------------------------------------------------------------------

func (s *ClaimServiceSuite) TestSubmit_RegistersClaim() {
	content := []byte("Staff engineer at Initech, 2019-2024")
	claim, err := s.service.Submit(s.as(s.alice), claims.CategoryWorkHistory, content, []byte("https://initech.example"))
	s.Require().NoError(err)

	s.Equal(claims.CategoryWorkHistory, claim.Category)
	s.Equal(s.alice, claim.Claimant)
	s.Equal(content, claim.Content)
	s.Equal(id.DeriveFingerprint(s.alice, content), claim.Fingerprint)
	s.True(claim.Visible)
	s.Equal(uint64(0), claim.EndorserCount)
	s.Equal([]id.AccountID{s.alice}, claim.Endorsers)

	stored, ok := s.storedClaim(claim.Fingerprint)
	s.True(ok)
	s.Equal(claim, stored)

	s.Equal([]id.AccountID{s.alice}, s.rewards.calls())
}

func (s *ClaimServiceSuite) TestSubmit_AppendsLedgerAndAccountIndex() {
	first := s.submitAs(s.alice, claims.CategoryEducation, "BSc, University of Waterloo")
	second := s.submitAs(s.alice, claims.CategoryEducation, "MSc, University of Waterloo")

	err := s.store.View(context.Background(), func(_ context.Context, tx storage.ReadTx) error {
		fps, err := tx.AccountClaims(s.alice, claims.CategoryEducation)
		s.Require().NoError(err)
		s.Equal([]id.Fingerprint{first.Fingerprint, second.Fingerprint}, fps)

		ledger, err := tx.LedgerClaims()
		s.Require().NoError(err)
		s.Require().Len(ledger, 2)
		s.Equal(first.Fingerprint, ledger[0].Fingerprint)
		s.Equal(second.Fingerprint, ledger[1].Fingerprint)
		return nil
	})
	s.Require().NoError(err)
}

func (s *ClaimServiceSuite) TestSubmit_EmitsCategoryTaggedEvent() {
	claim := s.submitAs(s.alice, claims.CategoryExpertise, "Distributed consensus")

	emitted := s.log.List()
	s.Require().Len(emitted, 1)
	s.Equal(events.KindClaimMadeExpertise, emitted[0].Kind)
	s.Equal(s.alice, emitted[0].Claimant)
	s.Equal(claim.Fingerprint, emitted[0].Fingerprint)
	s.Equal(claim.Content, emitted[0].Content)
}

func (s *ClaimServiceSuite) TestSubmit_EmitsRewardEventAfterClaimEvent() {
	s.rewards.event = &events.Event{Kind: events.KindRewardPaid, Claimant: s.alice, Amount: 20}

	s.submitAs(s.alice, claims.CategoryGoodDeed, "Organized a river cleanup")

	emitted := s.log.List()
	s.Require().Len(emitted, 2)
	s.Equal(events.KindClaimMadeGoodDeed, emitted[0].Kind)
	s.Equal(events.KindRewardPaid, emitted[1].Kind)
	s.Equal(uint64(20), emitted[1].Amount)
	s.Less(emitted[0].Seq, emitted[1].Seq)
}

func (s *ClaimServiceSuite) TestSubmit_RequiresAuthentication() {
	_, err := s.service.Submit(context.Background(), claims.CategoryWorkHistory, []byte("x"), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ClaimServiceSuite) TestSubmit_RejectsIntellectualPropertyCategory() {
	_, err := s.service.Submit(s.as(s.alice), claims.CategoryIntellectualProperty, []byte("novel"), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ClaimServiceSuite) TestSubmit_SameCallerSameContentDedups() {
	content := "Security researcher since 2015"
	s.submitAs(s.alice, claims.CategoryExpertise, content)

	// Identity is derived from caller and content, so even a different
	// category collides.
	_, err := s.service.Submit(s.as(s.alice), claims.CategoryWorkHistory, []byte(content), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateClaim))

	s.Len(s.rewards.calls(), 1)
	s.Len(s.log.List(), 1)
}

func (s *ClaimServiceSuite) TestSubmit_DistinctCallersSameContentBothSucceed() {
	content := "Volunteer firefighter"
	first := s.submitAs(s.alice, claims.CategoryGoodDeed, content)
	second := s.submitAs(s.bob, claims.CategoryGoodDeed, content)

	s.NotEqual(first.Fingerprint, second.Fingerprint)
}

func (s *ClaimServiceSuite) TestSubmit_CategoryCapacityCap() {
	for i := 0; i < claims.MaxAccountClaims; i++ {
		s.submitAs(s.alice, claims.CategoryWorkHistory, fmt.Sprintf("position %d", i))
	}

	_, err := s.service.Submit(s.as(s.alice), claims.CategoryWorkHistory, []byte("one too many"), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeDataTooLarge))

	// The cap is per category; other categories stay open.
	s.submitAs(s.alice, claims.CategoryEducation, "still room here")
}

func (s *ClaimServiceSuite) TestSubmit_CapacityCheckedBeforeDedup() {
	content := "position 0"
	for i := 0; i < claims.MaxAccountClaims; i++ {
		s.submitAs(s.alice, claims.CategoryWorkHistory, fmt.Sprintf("position %d", i))
	}

	// At capacity the resubmission reports the cap, not the duplicate.
	_, err := s.service.Submit(s.as(s.alice), claims.CategoryWorkHistory, []byte(content), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeDataTooLarge))
}

func (s *ClaimServiceSuite) TestSubmit_RewardFailureAbortsEverything() {
	s.rewards.err = dErrors.New(dErrors.CodePayoutFailed, "reward transfer failed")

	content := []byte("Lead platform engineer")
	_, err := s.service.Submit(s.as(s.alice), claims.CategoryWorkHistory, content, nil)
	s.True(dErrors.HasCode(err, dErrors.CodePayoutFailed))

	_, ok := s.storedClaim(id.DeriveFingerprint(s.alice, content))
	s.False(ok)
	s.Empty(s.log.List())
}

func (s *ClaimServiceSuite) TestSubmit_InvalidatesDetailAndResume() {
	claim := s.submitAs(s.alice, claims.CategoryWorkHistory, "SRE at Globex")

	s.ElementsMatch(
		[]string{cache.DetailKey(claim.Fingerprint), cache.ResumeKey(s.alice)},
		s.cache.deletions(),
	)
}

// -----------------------------------------------------------------------------
// SubmitIntellectualProperty
// -----------------------------------------------------------------------------

func (s *ClaimServiceSuite) TestSubmitIntellectualProperty_UsesProvidedFingerprint() {
	fp := id.DeriveFingerprint(s.alice, []byte("manuscript hash input"))

	claim, err := s.service.SubmitIntellectualProperty(s.as(s.alice), []byte("Novel: The Long Compile"), nil, fp)
	s.Require().NoError(err)

	s.Equal(claims.CategoryIntellectualProperty, claim.Category)
	s.Equal(fp, claim.Fingerprint)

	stored, ok := s.storedClaim(fp)
	s.True(ok)
	s.Equal(claim, stored)
}

func (s *ClaimServiceSuite) TestSubmitIntellectualProperty_RejectsZeroFingerprint() {
	_, err := s.service.SubmitIntellectualProperty(s.as(s.alice), []byte("x"), nil, id.Fingerprint{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ClaimServiceSuite) TestSubmitIntellectualProperty_FingerprintIsGlobalIdentity() {
	fp := id.DeriveFingerprint(s.alice, []byte("shared work hash"))

	_, err := s.service.SubmitIntellectualProperty(s.as(s.alice), []byte("design A"), nil, fp)
	s.Require().NoError(err)

	// A second account claiming the same work hash collides: first claim
	// wins regardless of claimant.
	_, err = s.service.SubmitIntellectualProperty(s.as(s.bob), []byte("design A"), nil, fp)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateClaim))
}

func (s *ClaimServiceSuite) TestSubmitIntellectualProperty_RequiresAuthentication() {
	fp := id.DeriveFingerprint(s.alice, []byte("y"))
	_, err := s.service.SubmitIntellectualProperty(context.Background(), []byte("x"), nil, fp)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// -----------------------------------------------------------------------------
// Endorse
// -----------------------------------------------------------------------------

func (s *ClaimServiceSuite) TestEndorse_RecordsThirdParty() {
	claim := s.submitAs(s.alice, claims.CategoryExpertise, "Kernel development")

	recorded, err := s.service.Endorse(s.as(s.bob), claim.Fingerprint)
	s.Require().NoError(err)
	s.True(recorded)

	stored, ok := s.storedClaim(claim.Fingerprint)
	s.Require().True(ok)
	s.Equal(uint64(1), stored.EndorserCount)
	s.Equal([]id.AccountID{s.alice, s.bob}, stored.Endorsers)

	emitted := s.log.List()
	s.Require().Len(emitted, 2)
	s.Equal(events.KindClaimEndorsed, emitted[1].Kind)
	s.Equal(s.alice, emitted[1].Claimant)
	s.Equal(claim.Fingerprint, emitted[1].Fingerprint)
	s.Equal(s.bob, emitted[1].Endorser)
}

func (s *ClaimServiceSuite) TestEndorse_NonexistentClaim() {
	fp := id.DeriveFingerprint(s.alice, []byte("never registered"))

	_, err := s.service.Endorse(s.as(s.bob), fp)
	s.True(dErrors.HasCode(err, dErrors.CodeNonexistentClaim))
	s.Empty(s.log.List())
}

func (s *ClaimServiceSuite) TestEndorse_ClaimantCannotEndorseOwnClaim() {
	claim := s.submitAs(s.alice, claims.CategoryExpertise, "Self promotion")

	_, err := s.service.Endorse(s.as(s.alice), claim.Fingerprint)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateEndorsement))
}

func (s *ClaimServiceSuite) TestEndorse_DuplicateEndorsement() {
	claim := s.submitAs(s.alice, claims.CategoryExpertise, "Compilers")

	_, err := s.service.Endorse(s.as(s.bob), claim.Fingerprint)
	s.Require().NoError(err)

	_, err = s.service.Endorse(s.as(s.bob), claim.Fingerprint)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateEndorsement))

	stored, _ := s.storedClaim(claim.Fingerprint)
	s.Equal(uint64(1), stored.EndorserCount)
}

func (s *ClaimServiceSuite) TestEndorse_AtCapacityEmitsEventWithoutRecording() {
	claim := s.submitAs(s.alice, claims.CategoryGoodDeed, "Beloved by all")

	// The claimant seeds the list, so MaxEndorsers-1 third parties fill it.
	for i := 0; i < claims.MaxEndorsers-1; i++ {
		recorded, err := s.service.Endorse(s.as(id.NewAccountID()), claim.Fingerprint)
		s.Require().NoError(err)
		s.Require().True(recorded)
	}
	eventsBefore := s.log.Len()

	recorded, err := s.service.Endorse(s.as(id.NewAccountID()), claim.Fingerprint)
	s.Require().NoError(err)
	s.False(recorded)

	// Acknowledged with an event, but the stored record is unchanged.
	s.Equal(eventsBefore+1, s.log.Len())
	stored, _ := s.storedClaim(claim.Fingerprint)
	s.Len(stored.Endorsers, claims.MaxEndorsers)
	s.Equal(uint64(claims.MaxEndorsers-1), stored.EndorserCount)
}

func (s *ClaimServiceSuite) TestEndorse_RequiresAuthentication() {
	claim := s.submitAs(s.alice, claims.CategoryExpertise, "Gardening")

	_, err := s.service.Endorse(context.Background(), claim.Fingerprint)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// -----------------------------------------------------------------------------
// SetVisibility
// -----------------------------------------------------------------------------

func (s *ClaimServiceSuite) TestSetVisibility_OwnerToggles() {
	claim := s.submitAs(s.alice, claims.CategoryWorkHistory, "Contractor, 2016")
	eventsBefore := s.log.Len()

	err := s.service.SetVisibility(s.as(s.alice), claim.Fingerprint, false)
	s.Require().NoError(err)

	stored, _ := s.storedClaim(claim.Fingerprint)
	s.False(stored.Visible)

	err = s.service.SetVisibility(s.as(s.alice), claim.Fingerprint, true)
	s.Require().NoError(err)

	stored, _ = s.storedClaim(claim.Fingerprint)
	s.True(stored.Visible)

	// Visibility changes are silent.
	s.Equal(eventsBefore, s.log.Len())
}

func (s *ClaimServiceSuite) TestSetVisibility_NonOwnerDenied() {
	claim := s.submitAs(s.alice, claims.CategoryWorkHistory, "CTO, 2020")

	err := s.service.SetVisibility(s.as(s.bob), claim.Fingerprint, false)
	s.True(dErrors.HasCode(err, dErrors.CodeCallerNotOwner))

	stored, _ := s.storedClaim(claim.Fingerprint)
	s.True(stored.Visible)
}

func (s *ClaimServiceSuite) TestSetVisibility_UnknownFingerprintReadsAsNotOwner() {
	fp := id.DeriveFingerprint(s.bob, []byte("missing"))

	err := s.service.SetVisibility(s.as(s.alice), fp, false)
	s.True(dErrors.HasCode(err, dErrors.CodeCallerNotOwner))
}

func (s *ClaimServiceSuite) TestSetVisibility_RequiresAuthentication() {
	claim := s.submitAs(s.alice, claims.CategoryWorkHistory, "Analyst")

	err := s.service.SetVisibility(context.Background(), claim.Fingerprint, false)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// -----------------------------------------------------------------------------
// End-to-end with the real reward controller
// -----------------------------------------------------------------------------

// TestSubmit_PaysRewardOnEveryFifthClaim wires the real reward controller
// and an in-memory bank under the registry and walks five submissions:
// exactly one payout, on the fifth.
func (s *ClaimServiceSuite) TestSubmit_PaysRewardOnEveryFifthClaim() {
	funds := bank.NewMemory()
	treasury := id.NewAccountID()
	root := id.NewAccountID()
	funds.Credit(root, 500)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rewards, err := rewardservice.New(s.store, funds, treasury, rewardservice.WithLogger(logger))
	s.Require().NoError(err)

	rootCtx := s.as(root)
	s.Require().NoError(rewards.SetRoot(rootCtx, root))
	s.Require().NoError(rewards.Configure(rootCtx, true, 5, 20))
	s.Require().NoError(rewards.Fund(rootCtx, 100))

	svc, err := service.New(s.store, rewards, s.publisher, service.WithLogger(logger))
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		_, err := svc.Submit(s.as(s.alice), claims.CategoryGoodDeed, []byte(fmt.Sprintf("deed %d", i)), nil)
		s.Require().NoError(err)
	}

	balance, err := funds.Balance(context.Background(), s.alice)
	s.Require().NoError(err)
	s.Equal(uint64(20), balance)

	var paid int
	for _, e := range s.log.List() {
		if e.Kind == events.KindRewardPaid {
			paid++
			s.Equal(s.alice, e.Claimant)
			s.Equal(uint64(20), e.Amount)
		}
	}
	s.Equal(1, paid)

	settings, err := rewards.Settings(rootCtx)
	s.Require().NoError(err)
	s.Equal(uint64(5), settings.ClaimCounter)
	s.Equal(uint64(80), settings.Balance)
	s.Equal(uint64(20), settings.TotalPaid)
}
