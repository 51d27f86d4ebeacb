package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	admissiondomain "github.com/smallbiznis/dreamline/internal/admission/domain"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	"github.com/smallbiznis/dreamline/internal/config"
	"github.com/smallbiznis/dreamline/internal/dedup"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	"github.com/smallbiznis/dreamline/internal/notification"
	obsmetrics "github.com/smallbiznis/dreamline/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"github.com/smallbiznis/dreamline/internal/settlement"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           orderdomain.Repository
	Policy         *config.PolicyHolder
	AdmissionSvc   admissiondomain.Service
	Guard          *dedup.Guard
	InterpreterSvc interpreterdomain.Service
	SettingsSvc    settingsdomain.Service
	Settlement     *settlement.Service
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service      `optional:"true"`
	Dispatcher     *notification.Dispatcher `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           orderdomain.Repository
	policy         *config.PolicyHolder
	admissionSvc   admissiondomain.Service
	guard          *dedup.Guard
	interpreterSvc interpreterdomain.Service
	settingsSvc    settingsdomain.Service
	settlement     *settlement.Service
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	dispatcher     *notification.Dispatcher
	obsMetrics     *obsmetrics.Metrics
}

// errReplayed labels a completion retry in metrics; it never reaches callers.
var errReplayed = errors.New("replayed")

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("order.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		policy:         p.Policy,
		admissionSvc:   p.AdmissionSvc,
		guard:          p.Guard,
		interpreterSvc: p.InterpreterSvc,
		settingsSvc:    p.SettingsSvc,
		settlement:     p.Settlement,
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		dispatcher:     p.Dispatcher,
		obsMetrics:     p.ObsMetrics,
	}
}

// Create admits, deduplicates and inserts a new order in one transaction.
func (s *Service) Create(ctx context.Context, req orderdomain.CreateOrderRequest) (*orderdomain.CreateOrderResult, error) {
	actor := req.Actor
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectOrder, string(orderdomain.ActionCreate)); err != nil {
		return nil, err
	}
	if !req.FulfillmentType.Valid() {
		return nil, orderdomain.ErrInvalidFulfillment
	}
	content := strings.TrimSpace(req.Content)
	normalized := dedup.Normalize(content)
	if normalized == "" {
		return nil, orderdomain.ErrInvalidContent
	}
	if utf8.RuneCountInString(normalized) > orderdomain.MaxContentLength {
		return nil, orderdomain.ErrContentTooLong
	}

	subjectID := strings.TrimSpace(actor.SubjectID)
	fingerprint := dedup.Fingerprint(subjectID, content)
	policy := s.policy.Get()
	now := s.clock.Now()

	var created *orderdomain.Order
	var decision admissiondomain.Decision
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.admissionSvc.Acquire(ctx, tx, subjectID, actor.IsGuest, now)
		if err != nil {
			return err
		}
		if err := s.guard.FindLive(ctx, tx, subjectID, fingerprint); err != nil {
			return err
		}

		decision, err = s.admissionSvc.Check(ctx, tx, account, admissiondomain.CheckRequest{
			SubjectID: subjectID,
			IsGuest:   actor.IsGuest,
			Now:       now,
			Policy:    policy,
		})
		if err != nil {
			return err
		}

		snapshot, err := s.settingsSvc.Snapshot(ctx, tx)
		if err != nil {
			return err
		}

		order := &orderdomain.Order{
			ID:                 s.genID.Generate(),
			SubjectID:          subjectID,
			IsGuest:            actor.IsGuest,
			FulfillmentType:    req.FulfillmentType,
			Content:            content,
			ContentFingerprint: fingerprint,
			Status:             orderdomain.StatusNew,
			PaymentStatus:      orderdomain.PaymentPending,
			AdmissionMode:      decision.Mode,
			Currency:           snapshot.Currency,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.guard.Insert(ctx, tx, func(tx *gorm.DB) error {
			return s.repo.Insert(ctx, tx, order)
		}); err != nil {
			return err
		}
		created = order
		return nil
	})
	if errors.Is(err, dedup.ErrFingerprintTaken) {
		err = s.guard.Resolve(ctx, s.db, subjectID, fingerprint)
	}
	if err != nil {
		if errors.Is(err, dedup.ErrDuplicateRequest) {
			s.obsMetrics.RecordDuplicate()
		}
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", created.ID.String()),
		zap.String("subject_id", subjectID),
		zap.String("admission_mode", string(decision.Mode)),
	)
	s.audit(ctx, actor, "order.created", created, map[string]any{
		"fulfillment_type": string(created.FulfillmentType),
		"admission_mode":   string(decision.Mode),
	})
	s.notify(notification.EventOrderCreated, created)

	return &orderdomain.CreateOrderResult{Order: created, Mode: decision.Mode}, nil
}

// Assign binds an interpreter to a new order and locks its current price.
func (s *Service) Assign(ctx context.Context, req orderdomain.AssignRequest) (*orderdomain.Order, error) {
	actor := req.Actor
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	interpreterID, err := snowflake.ParseString(strings.TrimSpace(req.InterpreterID))
	if err != nil || interpreterID == 0 {
		return nil, orderdomain.ErrInvalidInterpreter
	}

	assigned, err := s.assign(ctx, actor, orderID, interpreterID)
	if err != nil {
		s.recordTransition(orderdomain.StatusNew, orderdomain.StatusAssigned, err)
		return nil, err
	}
	s.recordTransition(orderdomain.StatusNew, orderdomain.StatusAssigned, nil)

	s.audit(ctx, actor, "order.assigned", assigned, map[string]any{
		"interpreter_id":         assigned.AssignedInterpreterID.String(),
		"interpreter_subject_id": deref(assigned.AssignedInterpreterSubjectID),
		"locked_price":           *assigned.LockedPrice,
	})
	s.notify(notification.EventOrderAssigned, assigned)
	return assigned, nil
}

func (s *Service) assign(ctx context.Context, actor identitydomain.Identity, orderID, interpreterID snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	party, ok := partyOf(actor, order)
	if !ok {
		return nil, orderdomain.ErrForbidden
	}
	if order.AssignedInterpreterID != nil {
		return nil, orderdomain.ErrAlreadyAssigned
	}
	rule, err := lookup(order, orderdomain.StatusAssigned)
	if err != nil {
		return nil, err
	}
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectOrder, string(rule.Action)); err != nil {
		return nil, err
	}
	if !rule.Allows(party) {
		return nil, orderdomain.ErrForbidden
	}

	interpreter, err := s.interpreterSvc.Get(ctx, s.db, interpreterID)
	if errors.Is(err, interpreterdomain.ErrInterpreterNotFound) {
		return nil, orderdomain.ErrInvalidInterpreter
	}
	if err != nil {
		return nil, err
	}
	if !interpreter.Active {
		return nil, orderdomain.ErrInvalidInterpreter
	}
	if string(interpreter.Kind) != string(order.FulfillmentType) {
		return nil, orderdomain.ErrInterpreterMismatch
	}

	now := s.clock.Now()
	var assigned *orderdomain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.repo.ConditionalUpdate(ctx, tx, orderdomain.StatusUpdate{
			OrderID:        order.ID,
			ExpectedStatus: orderdomain.StatusNew,
			NullColumns:    []string{"assigned_interpreter_id", "locked_price"},
			Values: map[string]any{
				"status":                          orderdomain.StatusAssigned,
				"assigned_interpreter_id":         interpreter.ID,
				"assigned_interpreter_subject_id": interpreter.SubjectID,
				"locked_price":                    interpreter.Price,
				"assigned_at":                     now,
				"updated_at":                      now,
			},
		})
		if err != nil {
			return err
		}
		current, err := s.load(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !applied {
			if current.AssignedInterpreterID != nil {
				return orderdomain.ErrAlreadyAssigned
			}
			return orderdomain.StaleTransition(order.Status, orderdomain.StatusAssigned)
		}
		assigned = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// Transition moves an order along one edge of the lifecycle. Completion
// settles in the same transaction; a repeated completion by the assigned
// interpreter returns the stored order.
func (s *Service) Transition(ctx context.Context, req orderdomain.TransitionRequest) (*orderdomain.Order, error) {
	actor := req.Actor
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, orderdomain.ErrInvalidStatus
	}

	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status

	result, settled, replayed, err := s.transition(ctx, actor, order, req)
	if err != nil {
		s.recordTransition(from, req.Status, err)
		return nil, err
	}
	if replayed {
		s.recordTransition(from, req.Status, errReplayed)
		return result, nil
	}
	s.recordTransition(from, req.Status, nil)

	s.log.Info("order transitioned",
		zap.String("order_id", result.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(result.Status)),
	)
	s.audit(ctx, actor, "order.transitioned", result, map[string]any{
		"from": string(from),
		"to":   string(result.Status),
	})

	switch result.Status {
	case orderdomain.StatusCompleted:
		if settled != nil {
			s.settlement.Observe(*settled)
			s.audit(ctx, actor, "order.settled", result, map[string]any{
				"locked_price":        deref64(result.LockedPrice),
				"platform_commission": settled.PlatformCommission,
				"interpreter_earning": settled.InterpreterEarning,
				"commission_rate":     settled.Rate.String(),
				"settings_version":    settled.SettingsVersion,
			})
			s.notify(notification.EventOrderSettled, result)
		}
	case orderdomain.StatusCancelled:
		s.audit(ctx, actor, "order.cancelled", result, map[string]any{
			"from":           string(from),
			"admission_mode": string(result.AdmissionMode),
			"payment_status": string(result.PaymentStatus),
		})
		s.notify(notification.EventOrderCancelled, result)
	default:
		s.notify(notification.EventOrderStatus, result)
	}
	return result, nil
}

func (s *Service) transition(ctx context.Context, actor identitydomain.Identity, order *orderdomain.Order, req orderdomain.TransitionRequest) (*orderdomain.Order, *settlement.Result, bool, error) {
	party, ok := partyOf(actor, order)
	if !ok {
		return nil, nil, false, orderdomain.ErrForbidden
	}
	if isCompletionReplay(req.Status, party, order) {
		return order, nil, true, nil
	}
	if req.Status == orderdomain.StatusAssigned {
		return nil, nil, false, &orderdomain.TransitionError{From: order.Status, To: req.Status, Reason: orderdomain.ReasonUseAssign}
	}

	rule, err := lookup(order, req.Status)
	if err != nil {
		return nil, nil, false, err
	}
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectOrder, string(rule.Action)); err != nil {
		return nil, nil, false, err
	}
	if !rule.Allows(party) {
		return nil, nil, false, orderdomain.ErrForbidden
	}

	now := s.clock.Now()
	update, err := buildUpdate(order, req, now)
	if err != nil {
		return nil, nil, false, err
	}

	var (
		result   *orderdomain.Order
		settled  *settlement.Result
		replayed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch req.Status {
		case orderdomain.StatusCompleted:
			snapshot, err := s.settingsSvc.Snapshot(ctx, tx)
			if err != nil {
				return err
			}
			res, err := s.settlement.Settle(ctx, tx, order, snapshot)
			if errors.Is(err, ledgerdomain.ErrLedgerMismatch) {
				result, replayed, err = s.resolveStale(ctx, tx, order, req.Status, party)
				return err
			}
			if err != nil {
				return err
			}
			update.Values["platform_commission"] = res.PlatformCommission
			update.Values["interpreter_earning"] = res.InterpreterEarning
			update.Values["commission_rate"] = res.Rate.String()
			update.Values["settings_version"] = res.SettingsVersion
			settled = &res
		case orderdomain.StatusCancelled:
			if err := s.admissionSvc.Refund(ctx, tx, order.SubjectID, order.AdmissionMode, now); err != nil {
				return fmt.Errorf("refund admission: %w", err)
			}
		}

		applied, err := s.repo.ConditionalUpdate(ctx, tx, update)
		if err != nil {
			return err
		}
		if !applied {
			settled = nil
			result, replayed, err = s.resolveStale(ctx, tx, order, req.Status, party)
			return err
		}

		result, err = s.load(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, nil, false, err
	}
	return result, settled, replayed, nil
}

// MarkPaid records a captured payment. Repeating it is a no-op.
func (s *Service) MarkPaid(ctx context.Context, actor identitydomain.Identity, orderID string) (*orderdomain.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectOrder, string(orderdomain.ActionMarkPaid)); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var paid *orderdomain.Order
	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if order.PaymentStatus == orderdomain.PaymentPaid {
			paid = order
			return nil
		}
		if order.PaymentStatus != orderdomain.PaymentPending || !acceptsPayment(order.Status) {
			return orderdomain.ErrPaymentNotAllowed
		}

		applied, err := s.repo.ConditionalUpdate(ctx, tx, orderdomain.StatusUpdate{
			OrderID:         order.ID,
			ExpectedStatus:  order.Status,
			ExpectedPayment: orderdomain.PaymentPending,
			Values: map[string]any{
				"payment_status": orderdomain.PaymentPaid,
				"updated_at":     now,
			},
		})
		if err != nil {
			return err
		}
		if !applied {
			return orderdomain.StaleTransition(order.Status, order.Status)
		}
		changed = true
		paid, err = s.load(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.audit(ctx, actor, "order.payment_marked", paid, map[string]any{
			"payment_status": string(paid.PaymentStatus),
		})
	}
	return paid, nil
}

// Get returns the order as the actor may see it.
func (s *Service) Get(ctx context.Context, actor identitydomain.Identity, orderID string) (*orderdomain.View, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectOrder, string(orderdomain.ActionView)); err != nil {
		return nil, err
	}

	order, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	party, ok := partyOf(actor, order)
	if !ok {
		return nil, orderdomain.ErrForbidden
	}
	view := redact(order, party)
	return &view, nil
}

// List scopes results by role: users see their own orders, interpreters their
// assignments, admin and system everything.
func (s *Service) List(ctx context.Context, req orderdomain.ListOrdersRequest) (orderdomain.ListOrdersResponse, error) {
	actor := req.Actor
	if err := actor.Validate(); err != nil {
		return orderdomain.ListOrdersResponse{}, err
	}
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectOrder, string(orderdomain.ActionView)); err != nil {
		return orderdomain.ListOrdersResponse{}, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return orderdomain.ListOrdersResponse{}, orderdomain.ErrInvalidStatus
	}

	filter := orderdomain.ListFilter{
		Status: req.Status,
		Limit:  req.Limit(),
	}
	party := orderdomain.PartyAdmin
	switch actor.Role {
	case identitydomain.RoleUser:
		filter.SubjectID = actor.SubjectID
		party = orderdomain.PartyOwner
	case identitydomain.RoleInterpreter:
		filter.InterpreterSubjectID = actor.SubjectID
		party = orderdomain.PartyInterpreter
	case identitydomain.RoleSystem:
		party = orderdomain.PartySystem
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursorID, cursorAt, err := pagination.ParseTimeCursor(token)
		if err != nil {
			return orderdomain.ListOrdersResponse{}, pagination.ErrInvalidCursor
		}
		id, err := snowflake.ParseString(cursorID)
		if err != nil || id == 0 {
			return orderdomain.ListOrdersResponse{}, pagination.ErrInvalidCursor
		}
		filter.CursorID = id
		filter.CursorCreatedAt = &cursorAt
	}

	orders, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return orderdomain.ListOrdersResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(orders, filter.Limit, func(o *orderdomain.Order) string {
		return pagination.TimeCursor(o.ID.String(), o.CreatedAt)
	})
	if len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}

	views := make([]orderdomain.View, 0, len(orders))
	for _, order := range orders {
		views = append(views, redact(order, party))
	}
	return orderdomain.ListOrdersResponse{PageInfo: *pageInfo, Orders: views}, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return order, nil
}

// resolveStale runs after a conditional update lost a race. A completion that
// lost to a completion by the same interpreter is reported as success.
func (s *Service) resolveStale(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, to orderdomain.Status, party orderdomain.Party) (*orderdomain.Order, bool, error) {
	current, err := s.load(ctx, tx, order.ID)
	if err != nil {
		return nil, false, err
	}
	if isCompletionReplay(to, party, current) {
		return current, true, nil
	}
	return nil, false, orderdomain.StaleTransition(order.Status, to)
}

func (s *Service) recordTransition(from, to orderdomain.Status, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, errReplayed):
		result = "replayed"
	case errors.Is(err, orderdomain.ErrStorageConflict):
		result = "stale"
	case errors.Is(err, orderdomain.ErrInvalidTransition):
		result = "invalid"
	case errors.Is(err, orderdomain.ErrForbidden), errors.Is(err, authorization.ErrForbidden):
		result = "forbidden"
	default:
		result = "error"
	}
	s.obsMetrics.RecordTransition(string(from), string(to), result)
}

func (s *Service) audit(ctx context.Context, actor identitydomain.Identity, action string, order *orderdomain.Order, metadata map[string]any) {
	if s.auditSvc == nil || order == nil {
		return
	}
	subjectID := actor.SubjectID
	targetID := order.ID.String()
	if err := s.auditSvc.AuditLog(ctx, string(actor.Role), &subjectID, action, "order", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) notify(eventType string, order *orderdomain.Order) {
	if s.dispatcher == nil || order == nil {
		return
	}
	s.dispatcher.Dispatch(notification.Event{
		Type:                 eventType,
		OrderID:              order.ID.String(),
		SubjectID:            order.SubjectID,
		InterpreterSubjectID: deref(order.AssignedInterpreterSubjectID),
		Status:               string(order.Status),
		OccurredAt:           order.UpdatedAt,
	})
}

// partyOf resolves the actor's relationship to order. Users and interpreters
// without a stake in the order have none.
func partyOf(actor identitydomain.Identity, order *orderdomain.Order) (orderdomain.Party, bool) {
	switch actor.Role {
	case identitydomain.RoleAdmin:
		return orderdomain.PartyAdmin, true
	case identitydomain.RoleSystem:
		return orderdomain.PartySystem, true
	case identitydomain.RoleUser:
		if order.SubjectID == actor.SubjectID {
			return orderdomain.PartyOwner, true
		}
	case identitydomain.RoleInterpreter:
		if order.AssignedInterpreterSubjectID != nil && *order.AssignedInterpreterSubjectID == actor.SubjectID {
			return orderdomain.PartyInterpreter, true
		}
	}
	return "", false
}

func lookup(order *orderdomain.Order, to orderdomain.Status) (orderdomain.Rule, error) {
	if order.Status.Terminal() {
		return orderdomain.Rule{}, &orderdomain.TransitionError{From: order.Status, To: to, Reason: orderdomain.ReasonTerminal}
	}
	rule, ok := orderdomain.LookupTransition(order.Status, to)
	if !ok {
		return orderdomain.Rule{}, &orderdomain.TransitionError{From: order.Status, To: to, Reason: orderdomain.ReasonEdgeNotAllowed}
	}
	return rule, nil
}

func isCompletionReplay(to orderdomain.Status, party orderdomain.Party, order *orderdomain.Order) bool {
	return to == orderdomain.StatusCompleted && party == orderdomain.PartyInterpreter && order.Settled()
}

func acceptsPayment(status orderdomain.Status) bool {
	switch status {
	case orderdomain.StatusNew, orderdomain.StatusAssigned, orderdomain.StatusInProgress:
		return true
	default:
		return false
	}
}

// buildUpdate validates the payload for the requested edge and returns the
// conditional update that applies it.
func buildUpdate(order *orderdomain.Order, req orderdomain.TransitionRequest, now time.Time) (orderdomain.StatusUpdate, error) {
	update := orderdomain.StatusUpdate{
		OrderID:        order.ID,
		ExpectedStatus: order.Status,
		Values: map[string]any{
			"status":     req.Status,
			"updated_at": now,
		},
	}

	switch req.Status {
	case orderdomain.StatusInProgress:
		update.NullColumns = []string{"accepted_at"}
		update.Values["accepted_at"] = now

	case orderdomain.StatusCompleted:
		text := strings.TrimSpace(req.Interpretation)
		if text == "" {
			return update, orderdomain.ErrInterpretationMissing
		}
		if utf8.RuneCountInString(text) > orderdomain.MaxContentLength {
			return update, orderdomain.ErrContentTooLong
		}
		if order.InterpretationText != nil || order.PlatformCommission != nil {
			return update, orderdomain.ErrWriteOnceViolation
		}
		update.NullColumns = []string{"interpretation_text", "platform_commission", "interpreter_earning", "settings_version"}
		update.Values["interpretation_text"] = text
		update.Values["completed_at"] = now
		update.ExpectedPayment = order.PaymentStatus
		if order.PaymentStatus == orderdomain.PaymentPaid {
			update.Values["payment_status"] = orderdomain.PaymentReleased
		}

	case orderdomain.StatusClarificationRequested:
		question := strings.TrimSpace(req.Question)
		if question == "" {
			return update, orderdomain.ErrQuestionMissing
		}
		if utf8.RuneCountInString(question) > orderdomain.MaxContentLength {
			return update, orderdomain.ErrContentTooLong
		}
		if order.ClarificationQuestion != nil {
			return update, &orderdomain.TransitionError{From: order.Status, To: req.Status, Reason: orderdomain.ReasonAlreadyRequested}
		}
		update.NullColumns = []string{"clarification_question"}
		update.Values["clarification_question"] = question

	case orderdomain.StatusClosed:
		if order.Status == orderdomain.StatusClarificationRequested {
			answer := strings.TrimSpace(req.Answer)
			if answer == "" {
				return update, orderdomain.ErrAnswerMissing
			}
			if utf8.RuneCountInString(answer) > orderdomain.MaxContentLength {
				return update, orderdomain.ErrContentTooLong
			}
			if order.ClarificationAnswer != nil {
				return update, orderdomain.ErrWriteOnceViolation
			}
			update.NullColumns = []string{"clarification_answer"}
			update.Values["clarification_answer"] = answer
		}
		update.Values["closed_at"] = now

	case orderdomain.StatusCancelled:
		update.Values["cancelled_at"] = now
		update.ExpectedPayment = order.PaymentStatus
		if order.PaymentStatus == orderdomain.PaymentPaid {
			update.Values["payment_status"] = orderdomain.PaymentRefunded
		}
	}
	return update, nil
}

// redact hides interpretation and settlement figures from the owner until the
// order has been completed.
func redact(order *orderdomain.Order, party orderdomain.Party) orderdomain.View {
	view := orderdomain.View{Order: *order}
	if party != orderdomain.PartyOwner || order.Status.InterpretationVisible() {
		return view
	}
	if view.InterpretationText != nil {
		view.InterpretationRedacted = true
	}
	view.InterpretationText = nil
	view.PlatformCommission = nil
	view.InterpreterEarning = nil
	view.CommissionRate = nil
	return view
}

func parseOrderID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, orderdomain.ErrInvalidOrderID
	}
	return id, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func deref64(value *int64) int64 {
	if value == nil {
		return 0
	}
	return *value
}
