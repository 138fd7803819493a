package dispatch

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks Outbox,Notary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"crossledger/internal/ledger"
	"crossledger/internal/ledger/dispatch/mocks"
	ledgermocks "crossledger/internal/ledger/mocks"
	"crossledger/internal/ledger/outbox"
	submitter "crossledger/internal/ledger/submitter/memory"
	tokens "crossledger/internal/ledger/tokens/memory"
	"crossledger/internal/platform/metrics"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/audit"
	notary "crossledger/pkg/platform/audit/store/memory"
	"crossledger/pkg/platform/circuit"
	"crossledger/pkg/platform/idgen"
	"crossledger/pkg/requestcontext"
)

type DispatcherSuite struct {
	suite.Suite
	ctx       context.Context
	outbox    *outbox.InMemory
	submitter *submitter.Submitter
	notary    *notary.InMemoryStore
	minter    *tokens.Minter
	metrics   *metrics.Metrics
	emitter   *ledger.Emitter
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	s.outbox = outbox.NewInMemory()
	s.submitter = submitter.New()
	s.notary = notary.NewInMemoryStore()
	s.minter = tokens.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.emitter = ledger.NewEmitter(domain.ModuleAgriculture, idgen.New("agriculture"), s.outbox)
}

func (s *DispatcherSuite) emit(kind audit.Action, transfer *ledger.Transfer) ledger.Operation {
	op, err := s.emitter.Emit(s.ctx, kind, domain.RecordID{0x01}, "0.0.22", map[string]string{"kind": string(kind)}, transfer)
	s.Require().NoError(err)
	return op
}

func (s *DispatcherSuite) TestDrainDispatchesInOrder() {
	registered := s.emit(audit.EventEntityRegistered, nil)
	released := s.emit(audit.EventPaymentReleased, &ledger.Transfer{To: "0.0.11", Amount: 9985})
	awarded := s.emit(audit.EventCreditsAwarded, nil)

	d := New(s.outbox, s.submitter, s.notary, WithMinter(s.minter), WithMetrics(s.metrics))
	res, err := d.Drain(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, res.Dispatched)
	s.False(res.Skipped)

	s.Equal([]domain.RecordID{registered.ID, released.ID, awarded.ID}, s.submitter.Anchored())
	s.Equal(uint64(9985), s.submitter.Credited("0.0.11"))
	s.Zero(s.outbox.PendingCount())

	events, err := s.notary.ListByTopic(s.ctx, string(domain.ModuleAgriculture))
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(audit.EventPaymentReleased, events[1].Action)
	s.Equal(uint64(9985), events[1].Amount)

	s.Len(s.minter.Minted(ledger.TokenIdentity), 1)
	s.Len(s.minter.Minted(ledger.TokenCarbonCredit), 1)

	entry, err := s.outbox.Get(s.ctx, awarded.ID)
	s.Require().NoError(err)
	s.Equal(outbox.StatusDispatched, entry.Status)
	s.Require().NotNil(entry.Receipt)
	s.Equal(uint64(1), entry.Receipt.TokenSerial)
	s.Equal(uint64(3), entry.Receipt.NotarySeq)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Dispatched.WithLabelValues("agriculture", string(audit.EventPaymentReleased))))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.OutboxPending))
}

func (s *DispatcherSuite) TestBatchSize() {
	for range 5 {
		s.emit(audit.EventHarvestRecorded, nil)
	}
	d := New(s.outbox, s.submitter, s.notary, WithBatchSize(2))

	res, err := d.Drain(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, res.Dispatched)
	s.Equal(3, s.outbox.PendingCount())
}

func (s *DispatcherSuite) TestFailureStopsBatchAndKeepsOrder() {
	ctrl := gomock.NewController(s.T())
	failing := ledgermocks.NewMockSubmitter(ctrl)

	first := s.emit(audit.EventHarvestRecorded, nil)
	second := s.emit(audit.EventContractCreated, nil)
	third := s.emit(audit.EventEscrowDeposited, nil)

	failing.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, op ledger.Operation) (ledger.Confirmation, error) {
			if op.ID == second.ID {
				return ledger.Confirmation{}, errors.New("ledger unreachable")
			}
			return s.submitter.Submit(ctx, op)
		}).Times(2)

	d := New(s.outbox, failing, s.notary, WithMetrics(s.metrics))
	res, err := d.Drain(s.ctx)
	s.Require().Error(err)
	s.Equal(1, res.Dispatched)

	entry, err := s.outbox.Get(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(outbox.StatusPending, entry.Status)
	s.Equal(1, entry.Attempts)
	s.Contains(entry.LastError, "ledger unreachable")

	untouched, err := s.outbox.Get(s.ctx, third.ID)
	s.Require().NoError(err)
	s.Zero(untouched.Attempts)

	s.Equal([]domain.RecordID{first.ID}, s.submitter.Anchored())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DispatchFailures.WithLabelValues("submit")))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.OutboxPending))
}

func (s *DispatcherSuite) TestRetryAfterNotaryFailureReplaysSubmission() {
	ctrl := gomock.NewController(s.T())
	flaky := mocks.NewMockNotary(ctrl)

	op := s.emit(audit.EventPaymentReleased, &ledger.Transfer{To: "0.0.11", Amount: 100})

	gomock.InOrder(
		flaky.EXPECT().Append(gomock.Any(), "agriculture", gomock.Any()).Return(uint64(0), errors.New("broker down")),
		flaky.EXPECT().Append(gomock.Any(), "agriculture", gomock.Any()).Return(uint64(7), nil),
	)

	d := New(s.outbox, s.submitter, flaky)
	_, err := d.Drain(s.ctx)
	s.Require().Error(err)

	res, err := d.Drain(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Dispatched)

	entry, err := s.outbox.Get(s.ctx, op.ID)
	s.Require().NoError(err)
	s.Equal(2, entry.Attempts)
	s.True(entry.Receipt.Confirmation.Replayed)
	s.Equal(uint64(7), entry.Receipt.NotarySeq)
	s.Equal(uint64(100), s.submitter.Credited("0.0.11"), "replay moves no funds twice")
}

func (s *DispatcherSuite) TestMintFailureLeavesEntryPending() {
	ctrl := gomock.NewController(s.T())
	minter := ledgermocks.NewMockTokenMinter(ctrl)
	minter.EXPECT().Mint(gomock.Any(), ledger.TokenCarbonCredit, gomock.Any()).Return(uint64(0), errors.New("redis down"))

	op := s.emit(audit.EventCreditsAwarded, nil)
	d := New(s.outbox, s.submitter, s.notary, WithMinter(minter))

	_, err := d.Drain(s.ctx)
	s.Require().Error(err)

	entry, err := s.outbox.Get(s.ctx, op.ID)
	s.Require().NoError(err)
	s.Equal(outbox.StatusPending, entry.Status)
	s.Contains(entry.LastError, "redis down")
}

func (s *DispatcherSuite) TestOpenBreakerSkipsBatch() {
	ctrl := gomock.NewController(s.T())
	failing := ledgermocks.NewMockSubmitter(ctrl)
	failing.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(ledger.Confirmation{}, errors.New("timeout")).Times(1)

	s.emit(audit.EventHarvestRecorded, nil)
	breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
	d := New(s.outbox, failing, s.notary, WithBreaker(breaker), WithMetrics(s.metrics))

	_, err := d.Drain(s.ctx)
	s.Require().Error(err)
	s.True(breaker.IsOpen())

	res, err := d.Drain(s.ctx)
	s.Require().NoError(err)
	s.True(res.Skipped)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DispatchFailures.WithLabelValues("skipped")))
}

func (s *DispatcherSuite) TestRunStopsOnCancel() {
	s.emit(audit.EventHarvestRecorded, nil)
	d := New(s.outbox, s.submitter, s.notary, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	s.Eventually(func() bool { return s.outbox.PendingCount() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	s.ErrorIs(<-done, context.Canceled)
}
