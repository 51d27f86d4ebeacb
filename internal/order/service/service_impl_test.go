package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	accountrepo "github.com/smallbiznis/dreamline/internal/account/repository"
	admissiondomain "github.com/smallbiznis/dreamline/internal/admission/domain"
	admissionservice "github.com/smallbiznis/dreamline/internal/admission/service"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	auditrepo "github.com/smallbiznis/dreamline/internal/audit/repository"
	auditservice "github.com/smallbiznis/dreamline/internal/audit/service"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	"github.com/smallbiznis/dreamline/internal/config"
	"github.com/smallbiznis/dreamline/internal/dedup"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
	interpreterrepo "github.com/smallbiznis/dreamline/internal/interpreter/repository"
	interpreterservice "github.com/smallbiznis/dreamline/internal/interpreter/service"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/dreamline/internal/ledger/service"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	orderrepo "github.com/smallbiznis/dreamline/internal/order/repository"
	settingsservice "github.com/smallbiznis/dreamline/internal/settings/service"
	"github.com/smallbiznis/dreamline/internal/settlement"
	"github.com/smallbiznis/dreamline/internal/testutil"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	t0     = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	admin  = identitydomain.Identity{SubjectID: "admin-1", Role: identitydomain.RoleAdmin}
	system = identitydomain.Identity{SubjectID: "payments", Role: identitydomain.RoleSystem}
)

func userID(subject string) identitydomain.Identity {
	return identitydomain.Identity{SubjectID: subject, Role: identitydomain.RoleUser}
}

func guestID(subject string) identitydomain.Identity {
	return identitydomain.Identity{SubjectID: subject, IsGuest: true, Role: identitydomain.RoleUser}
}

func interpreterID(subject string) identitydomain.Identity {
	return identitydomain.Identity{SubjectID: subject, Role: identitydomain.RoleInterpreter}
}

type fixture struct {
	db           *gorm.DB
	svc          *Service
	clock        *clock.FakeClock
	ledger       ledgerdomain.Service
	interpreters interpreterdomain.Service
	audit        auditdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	testutil.SeedSettings(t, db, "0.3", "USD")
	node := testutil.Node(t)
	clk := clock.NewFakeClock(t0)
	log := zap.NewNop()

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	orders := orderrepo.Provide()
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide()})
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	interpreters := interpreterservice.NewService(interpreterservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: interpreterrepo.Provide(), AuthzSvc: authz,
	})

	svc := NewService(Params{
		DB:             db,
		Log:            log,
		GenID:          node,
		Clock:          clk,
		Repo:           orders,
		Policy:         config.NewStaticPolicyHolder(config.DefaultQuotaPolicy()),
		AdmissionSvc:   admissionservice.NewService(admissionservice.Params{Log: log, Accounts: accountrepo.Provide(), Orders: orders}),
		Guard:          dedup.NewGuard(dedup.Params{Log: log, Repo: orders}),
		InterpreterSvc: interpreters,
		SettingsSvc:    settingsservice.NewService(settingsservice.Params{DB: db, Log: log, Clock: clk, AuthzSvc: authz}),
		Settlement:     settlement.NewService(settlement.Params{Log: log, Ledger: ledger}),
		AuthzSvc:       authz,
		AuditSvc:       audit,
	}).(*Service)

	return &fixture{db: db, svc: svc, clock: clk, ledger: ledger, interpreters: interpreters, audit: audit}
}

// fund gives subject a paid plan with credits so it can submit repeatedly.
func (f *fixture) fund(t *testing.T, subject string, credits int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&accountdomain.Account{
		SubjectID: subject,
		Plan:      accountdomain.PlanPaid,
		Credits:   credits,
		CreatedAt: t0,
		UpdatedAt: t0,
	}).Error)
}

func (f *fixture) newInterpreter(t *testing.T, subject string, kind interpreterdomain.Kind, price int64) *interpreterdomain.Interpreter {
	t.Helper()
	interpreter, err := f.interpreters.Create(context.Background(), admin, interpreterdomain.CreateRequest{
		SubjectID:   subject,
		DisplayName: subject,
		Kind:        kind,
		Price:       price,
	})
	require.NoError(t, err)
	return interpreter
}

func (f *fixture) create(t *testing.T, actor identitydomain.Identity, content string) *orderdomain.Order {
	t.Helper()
	res, err := f.svc.Create(context.Background(), orderdomain.CreateOrderRequest{
		Actor:           actor,
		FulfillmentType: orderdomain.FulfillmentHuman,
		Content:         content,
	})
	require.NoError(t, err)
	return res.Order
}

// inProgress drives a fresh order to in_progress with interp assigned.
func (f *fixture) inProgress(t *testing.T, owner identitydomain.Identity, content string, interp *interpreterdomain.Interpreter) *orderdomain.Order {
	t.Helper()
	ctx := context.Background()
	order := f.create(t, owner, content)
	_, err := f.svc.Assign(ctx, orderdomain.AssignRequest{Actor: owner, OrderID: order.ID.String(), InterpreterID: interp.ID.String()})
	require.NoError(t, err)
	started, err := f.svc.Transition(ctx, orderdomain.TransitionRequest{
		Actor:   interpreterID(interp.SubjectID),
		OrderID: order.ID.String(),
		Status:  orderdomain.StatusInProgress,
	})
	require.NoError(t, err)
	return started
}

func (f *fixture) complete(ctx context.Context, interp *interpreterdomain.Interpreter, order *orderdomain.Order) (*orderdomain.Order, error) {
	return f.svc.Transition(ctx, orderdomain.TransitionRequest{
		Actor:          interpreterID(interp.SubjectID),
		OrderID:        order.ID.String(),
		Status:         orderdomain.StatusCompleted,
		Interpretation: "Water usually stands for feelings you have not named yet.",
	})
}

func (f *fixture) ledgerRows(t *testing.T, orderID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.Transaction{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

func TestCreateFreePlanScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := userID("u1")

	res, err := f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: u1, FulfillmentType: orderdomain.FulfillmentAI, Content: "I dreamt of a flooded house"})
	require.NoError(t, err)
	assert.Equal(t, admissiondomain.ModeFree, res.Mode)
	assert.Equal(t, orderdomain.StatusNew, res.Order.Status)
	assert.Equal(t, orderdomain.PaymentPending, res.Order.PaymentStatus)
	assert.Equal(t, "USD", res.Order.Currency)

	_, err = f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: u1, FulfillmentType: orderdomain.FulfillmentAI, Content: "  i DREAMT of a\tflooded   house "})
	var dup *dedup.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, res.Order.ID, dup.ExistingOrderID)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: u1, FulfillmentType: orderdomain.FulfillmentAI, Content: "A staircase with no end"})
	var denied *admissiondomain.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, admissiondomain.ReasonDailyLimitReached, denied.Reason)
	require.NotNil(t, denied.NextResetAt)
	assert.True(t, denied.NextResetAt.Equal(t0.Add(24*time.Hour)))

	f.clock.Advance(23 * time.Hour)
	res, err = f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: u1, FulfillmentType: orderdomain.FulfillmentAI, Content: "A staircase with no end"})
	require.NoError(t, err)
	assert.Equal(t, admissiondomain.ModeFree, res.Mode)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: userID("u1"), FulfillmentType: "ROBOT", Content: "x"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidFulfillment)

	_, err = f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: userID("u1"), FulfillmentType: orderdomain.FulfillmentAI, Content: " \n\t "})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidContent)

	_, err = f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: interpreterID("i1"), FulfillmentType: orderdomain.FulfillmentAI, Content: "x"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = f.svc.Create(ctx, orderdomain.CreateOrderRequest{Actor: userID("u1"), FulfillmentType: orderdomain.FulfillmentHuman, Content: strings.Repeat("z", orderdomain.MaxContentLength+1)})
	assert.ErrorIs(t, err, orderdomain.ErrContentTooLong)
}

func TestContentLengthCountsNormalizedText(t *testing.T) {
	f := newFixture(t)

	// twice the limit raw, one rune under once whitespace collapses
	content := strings.Repeat("a \t ", orderdomain.MaxContentLength/2)
	require.Greater(t, len(content), orderdomain.MaxContentLength)

	order := f.create(t, userID("u1"), content)
	assert.Equal(t, orderdomain.StatusNew, order.Status)
}

func TestConcurrentGuestCreatesAdmitOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guest := guestID("g1")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, orderdomain.CreateOrderRequest{
				Actor:           guest,
				FulfillmentType: orderdomain.FulfillmentAI,
				Content:         fmt.Sprintf("guest dream %d", i),
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		var denied *admissiondomain.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, admissiondomain.ReasonGuestExhausted, denied.Reason)
	}
	assert.Equal(t, 1, accepted)
}

func TestConcurrentDuplicatesAcceptOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 20)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, orderdomain.CreateOrderRequest{
				Actor:           userID("u1"),
				FulfillmentType: orderdomain.FulfillmentHuman,
				Content:         "The same falling dream",
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, dedup.ErrDuplicateRequest)
	}
	assert.Equal(t, 1, accepted)

	var account accountdomain.Account
	require.NoError(t, f.db.First(&account, "subject_id = ?", "u1").Error)
	assert.Equal(t, int64(20), account.Credits, "duplicates must not consume quota")
}

func TestCancelledOrderReleasesFingerprint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 5)

	order := f.create(t, userID("u1"), "A red door")
	_, err := f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: admin, OrderID: order.ID.String(), Status: orderdomain.StatusCancelled})
	require.NoError(t, err)

	again := f.create(t, userID("u1"), "a red door")
	assert.NotEqual(t, order.ID, again.ID)
}

func TestSettlementScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)

	order := f.inProgress(t, userID("u1"), "Teeth falling out", interp)
	require.NotNil(t, order.LockedPrice)
	assert.Equal(t, int64(20), *order.LockedPrice)

	_, err := f.interpreters.UpdatePrice(ctx, admin, interp.ID.String(), 90)
	require.NoError(t, err)

	completed, err := f.complete(ctx, interp, order)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, completed.Status)
	require.True(t, completed.Settled())
	assert.Equal(t, int64(6), *completed.PlatformCommission)
	assert.Equal(t, int64(14), *completed.InterpreterEarning)
	assert.Equal(t, "0.3", *completed.CommissionRate)
	assert.Equal(t, int64(1), *completed.SettingsVersion)

	row, err := f.ledger.GetByOrderID(ctx, f.db, order.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(14), row.Amount)
	assert.Equal(t, int64(6), row.PlatformCommission)
	assert.Equal(t, int64(20), row.GrossAmount)
	assert.Equal(t, "i1", row.InterpreterSubjectID)
}

func TestCompletionTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 33)
	order := f.inProgress(t, userID("u1"), "Flying over the sea", interp)

	first, err := f.complete(ctx, interp, order)
	require.NoError(t, err)
	second, err := f.complete(ctx, interp, order)
	require.NoError(t, err)

	assert.Equal(t, *first.PlatformCommission, *second.PlatformCommission)
	assert.Equal(t, *first.InterpreterEarning, *second.InterpreterEarning)
	assert.Equal(t, int64(33), *second.PlatformCommission+*second.InterpreterEarning)
	assert.Equal(t, int64(1), f.ledgerRows(t, order.ID))
}

func TestConcurrentCompletionSettlesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 101)
	order := f.inProgress(t, userID("u1"), "Lost in an airport", interp)

	const n = 5
	var wg sync.WaitGroup
	results := make([]*orderdomain.Order, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.complete(ctx, interp, order)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(30), *results[i].PlatformCommission)
		assert.Equal(t, int64(71), *results[i].InterpreterEarning)
	}
	assert.Equal(t, int64(1), f.ledgerRows(t, order.ID))
}

func TestWrongInterpreterIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	i1 := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	f.newInterpreter(t, "i2", interpreterdomain.KindHuman, 20)

	order := f.create(t, userID("u1"), "A snake in the garden")
	_, err := f.svc.Assign(ctx, orderdomain.AssignRequest{Actor: userID("u1"), OrderID: order.ID.String(), InterpreterID: i1.ID.String()})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: interpreterID("i2"), OrderID: order.ID.String(), Status: orderdomain.StatusInProgress})
	assert.ErrorIs(t, err, orderdomain.ErrForbidden)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: userID("u2"), OrderID: order.ID.String(), Status: orderdomain.StatusInProgress})
	assert.ErrorIs(t, err, orderdomain.ErrForbidden)

	// the owner is a party but not one that may start the work
	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: userID("u1"), OrderID: order.ID.String(), Status: orderdomain.StatusInProgress})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestClosedOrderRejectsTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	owner := userID("u1")
	order := f.inProgress(t, owner, "Running late for an exam", interp)
	_, err := f.complete(ctx, interp, order)
	require.NoError(t, err)

	closed, err := f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: orderdomain.StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: orderdomain.StatusClarificationRequested, Question: "why?"})
	var terr *orderdomain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)
	assert.Equal(t, orderdomain.ReasonTerminal, terr.Reason)
	assert.Equal(t, orderdomain.StatusClosed, terr.From)
}

func TestIllegalEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := userID("u1")
	order := f.create(t, owner, "An empty theatre")

	_, err := f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: admin, OrderID: order.ID.String(), Status: orderdomain.StatusCompleted, Interpretation: "x"})
	var terr *orderdomain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, orderdomain.ReasonEdgeNotAllowed, terr.Reason)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: orderdomain.StatusAssigned})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, orderdomain.ReasonUseAssign, terr.Reason)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: "done"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidStatus)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: "12345", Status: orderdomain.StatusClosed})
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}

func TestStaleUpdateIsStorageConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	order := f.create(t, userID("u1"), "Old school hallway")
	_, err := f.svc.Assign(ctx, orderdomain.AssignRequest{Actor: admin, OrderID: order.ID.String(), InterpreterID: interp.ID.String()})
	require.NoError(t, err)

	snapshot, err := f.svc.load(ctx, f.db, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: admin, OrderID: order.ID.String(), Status: orderdomain.StatusCancelled})
	require.NoError(t, err)

	_, _, _, err = f.svc.transition(ctx, interpreterID("i1"), snapshot, orderdomain.TransitionRequest{
		Actor:   interpreterID("i1"),
		OrderID: order.ID.String(),
		Status:  orderdomain.StatusInProgress,
	})
	assert.ErrorIs(t, err, orderdomain.ErrStorageConflict)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)
}

func TestAssignRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	human := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	ai := f.newInterpreter(t, "bot", interpreterdomain.KindAI, 5)
	retired := f.newInterpreter(t, "i9", interpreterdomain.KindHuman, 20)
	_, err := f.interpreters.SetActive(ctx, admin, retired.ID.String(), false)
	require.NoError(t, err)

	order := f.create(t, userID("u1"), "A clock without hands")
	assign := func(actor identitydomain.Identity, interp *interpreterdomain.Interpreter) error {
		_, err := f.svc.Assign(ctx, orderdomain.AssignRequest{Actor: actor, OrderID: order.ID.String(), InterpreterID: interp.ID.String()})
		return err
	}

	assert.ErrorIs(t, assign(userID("u2"), human), orderdomain.ErrForbidden)
	assert.ErrorIs(t, assign(interpreterID("i1"), human), orderdomain.ErrForbidden)
	assert.ErrorIs(t, assign(userID("u1"), ai), orderdomain.ErrInterpreterMismatch)
	assert.ErrorIs(t, assign(userID("u1"), retired), orderdomain.ErrInvalidInterpreter)

	require.NoError(t, assign(system, human))
	assert.ErrorIs(t, assign(userID("u1"), human), orderdomain.ErrAlreadyAssigned)

	stored, err := f.svc.load(ctx, f.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusAssigned, stored.Status)
	assert.Equal(t, "i1", *stored.AssignedInterpreterSubjectID)
	assert.Equal(t, int64(20), *stored.LockedPrice)
	assert.NotNil(t, stored.AssignedAt)
}

func TestClarificationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	owner := userID("u1")
	order := f.inProgress(t, owner, "Talking animals", interp)
	_, err := f.complete(ctx, interp, order)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: orderdomain.StatusClarificationRequested})
	assert.ErrorIs(t, err, orderdomain.ErrQuestionMissing)

	asked, err := f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: orderdomain.StatusClarificationRequested, Question: "What about the cat?"})
	require.NoError(t, err)
	assert.Equal(t, "What about the cat?", *asked.ClarificationQuestion)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: interpreterID("i1"), OrderID: order.ID.String(), Status: orderdomain.StatusClosed})
	assert.ErrorIs(t, err, orderdomain.ErrAnswerMissing)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: orderdomain.StatusClosed, Answer: "self answer"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	closed, err := f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: interpreterID("i1"), OrderID: order.ID.String(), Status: orderdomain.StatusClosed, Answer: "The cat is your intuition."})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusClosed, closed.Status)
	assert.Equal(t, "The cat is your intuition.", *closed.ClarificationAnswer)
	assert.Equal(t, "What about the cat?", *closed.ClarificationQuestion)
}

func TestSettledOrdersCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	owner := userID("u1")
	order := f.inProgress(t, owner, "Stairs that never end", interp)
	_, err := f.complete(ctx, interp, order)
	require.NoError(t, err)

	var terr *orderdomain.TransitionError
	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: admin, OrderID: order.ID.String(), Status: orderdomain.StatusCancelled})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, orderdomain.StatusCompleted, terr.From)
	assert.Equal(t, orderdomain.ReasonEdgeNotAllowed, terr.Reason)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: owner, OrderID: order.ID.String(), Status: orderdomain.StatusClarificationRequested, Question: "Why stairs?"})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: system, OrderID: order.ID.String(), Status: orderdomain.StatusCancelled})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, orderdomain.StatusClarificationRequested, terr.From)
	assert.Equal(t, orderdomain.ReasonEdgeNotAllowed, terr.Reason)

	stored, err := f.svc.Get(ctx, admin, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusClarificationRequested, stored.Status)
	assert.Nil(t, stored.CancelledAt)
	assert.Equal(t, int64(1), f.ledgerRows(t, order.ID))
}

func TestGetRedactsForOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	owner := userID("u1")
	order := f.inProgress(t, owner, "A house with extra rooms", interp)

	view, err := f.svc.Get(ctx, owner, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "A house with extra rooms", view.Content)
	assert.Nil(t, view.InterpretationText)
	assert.Nil(t, view.PlatformCommission)

	_, err = f.svc.Get(ctx, userID("u2"), order.ID.String())
	assert.ErrorIs(t, err, orderdomain.ErrForbidden)
	_, err = f.svc.Get(ctx, interpreterID("i2"), order.ID.String())
	assert.ErrorIs(t, err, orderdomain.ErrForbidden)

	_, err = f.complete(ctx, interp, order)
	require.NoError(t, err)

	view, err = f.svc.Get(ctx, owner, order.ID.String())
	require.NoError(t, err)
	require.NotNil(t, view.InterpretationText)
	assert.False(t, view.InterpretationRedacted)

	view, err = f.svc.Get(ctx, interpreterID("i1"), order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(14), *view.InterpreterEarning)
}

func TestRedactHidesUnfinishedInterpretation(t *testing.T) {
	text := "draft"
	commission := int64(3)
	order := &orderdomain.Order{Status: orderdomain.StatusInProgress, InterpretationText: &text, PlatformCommission: &commission}

	owner := redact(order, orderdomain.PartyOwner)
	assert.Nil(t, owner.InterpretationText)
	assert.Nil(t, owner.PlatformCommission)
	assert.True(t, owner.InterpretationRedacted)

	adminView := redact(order, orderdomain.PartyAdmin)
	assert.Equal(t, &text, adminView.InterpretationText)
	assert.False(t, adminView.InterpretationRedacted)
}

func TestCancelRefundsCreditAndPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 2)

	free := f.create(t, userID("u1"), "First dream")
	assert.Equal(t, admissiondomain.ModeFree, free.AdmissionMode)
	paid := f.create(t, userID("u1"), "Second dream")
	assert.Equal(t, admissiondomain.ModeCredit, paid.AdmissionMode)

	marked, err := f.svc.MarkPaid(ctx, system, paid.ID.String())
	require.NoError(t, err)
	assert.Equal(t, orderdomain.PaymentPaid, marked.PaymentStatus)
	_, err = f.svc.MarkPaid(ctx, system, paid.ID.String())
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: userID("u1"), OrderID: paid.ID.String(), Status: orderdomain.StatusCancelled})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	cancelled, err := f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: system, OrderID: paid.ID.String(), Status: orderdomain.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCancelled, cancelled.Status)
	assert.Equal(t, orderdomain.PaymentRefunded, cancelled.PaymentStatus)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: admin, OrderID: free.ID.String(), Status: orderdomain.StatusCancelled})
	require.NoError(t, err)

	var account accountdomain.Account
	require.NoError(t, f.db.First(&account, "subject_id = ?", "u1").Error)
	assert.Equal(t, int64(2), account.Credits)

	_, err = f.svc.MarkPaid(ctx, system, paid.ID.String())
	assert.ErrorIs(t, err, orderdomain.ErrPaymentNotAllowed)
}

func TestCompletionReleasesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	order := f.create(t, userID("u1"), "Driving without brakes")
	_, err := f.svc.MarkPaid(ctx, admin, order.ID.String())
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, orderdomain.AssignRequest{Actor: userID("u1"), OrderID: order.ID.String(), InterpreterID: interp.ID.String()})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, orderdomain.TransitionRequest{Actor: interpreterID("i1"), OrderID: order.ID.String(), Status: orderdomain.StatusInProgress})
	require.NoError(t, err)

	completed, err := f.complete(ctx, interp, order)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.PaymentReleased, completed.PaymentStatus)
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	f.fund(t, "u1", 5)
	f.fund(t, "u2", 5)

	var mine []*orderdomain.Order
	for i := 0; i < 3; i++ {
		mine = append(mine, f.create(t, userID("u1"), fmt.Sprintf("u1 dream %d", i)))
		f.clock.Advance(time.Minute)
	}
	other := f.create(t, userID("u2"), "u2 dream")
	_, err := f.svc.Assign(ctx, orderdomain.AssignRequest{Actor: admin, OrderID: other.ID.String(), InterpreterID: interp.ID.String()})
	require.NoError(t, err)

	page, err := f.svc.List(ctx, orderdomain.ListOrdersRequest{Actor: userID("u1"), Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, mine[2].ID, page.Orders[0].ID)

	next, err := f.svc.List(ctx, orderdomain.ListOrdersRequest{Actor: userID("u1"), Pagination: pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, next.Orders, 1)
	assert.False(t, next.HasMore)
	assert.Equal(t, mine[0].ID, next.Orders[0].ID)

	assigned, err := f.svc.List(ctx, orderdomain.ListOrdersRequest{Actor: interpreterID("i1")})
	require.NoError(t, err)
	require.Len(t, assigned.Orders, 1)
	assert.Equal(t, other.ID, assigned.Orders[0].ID)

	all, err := f.svc.List(ctx, orderdomain.ListOrdersRequest{Actor: admin, Status: orderdomain.StatusNew})
	require.NoError(t, err)
	assert.Len(t, all.Orders, 3)

	_, err = f.svc.List(ctx, orderdomain.ListOrdersRequest{Actor: admin, Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.True(t, errors.Is(err, pagination.ErrInvalidCursor))
}

func TestLifecycleIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interp := f.newInterpreter(t, "i1", interpreterdomain.KindHuman, 20)
	order := f.inProgress(t, userID("u1"), "Whales in the sky", interp)
	_, err := f.complete(ctx, interp, order)
	require.NoError(t, err)

	targetID := order.ID.String()
	var actions []string
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).
		Where("target_id = ?", targetID).
		Order("created_at asc, id asc").
		Pluck("action", &actions).Error)
	assert.Equal(t, []string{"order.created", "order.assigned", "order.transitioned", "order.transitioned", "order.settled"}, actions)
}
