package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// fakeStore implements the subset of storage.Store the engine touches.
// Unimplemented methods panic through the embedded nil interface.
type fakeStore struct {
	storage.Store

	mu sync.Mutex

	devices   map[string][]*models.CustomerDevice
	customers map[uuid.UUID]*models.Customer
	open      map[string][]*models.Notification
	messages  map[string]*models.Message

	created   []*models.Notification
	closed    map[uuid.UUID]time.Time
	processed map[uuid.UUID]bool
	notified  map[uuid.UUID]bool

	commits   int
	rollbacks int

	findOpenErr error
	createErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices:   make(map[string][]*models.CustomerDevice),
		customers: make(map[uuid.UUID]*models.Customer),
		open:      make(map[string][]*models.Notification),
		messages:  make(map[string]*models.Message),
		closed:    make(map[uuid.UUID]time.Time),
		processed: make(map[uuid.UUID]bool),
		notified:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) BeginTx(ctx context.Context) (storage.Store, error) { return f, nil }

func (f *fakeStore) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeStore) Rollback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	return nil
}

func (f *fakeStore) FindOpenNotifications(ctx context.Context, serial string) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findOpenErr != nil {
		return nil, f.findOpenErr
	}
	out := make([]*models.Notification, len(f.open[serial]))
	copy(out, f.open[serial])
	return out, nil
}

func (f *fakeStore) GetCustomerDevicesBySerial(ctx context.Context, serial string) ([]*models.CustomerDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[serial], nil
}

func (f *fakeStore) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return customer, nil
}

func (f *fakeStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.StartDate.IsZero() {
		n.StartDate = time.Now()
	}
	f.created = append(f.created, n)
	f.open[n.Serial] = append(f.open[n.Serial], n)
	return nil
}

func (f *fakeStore) CloseNotification(ctx context.Context, id uuid.UUID, endDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[id] = endDate
	for serial, list := range f.open {
		kept := list[:0]
		for _, n := range list {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		f.open[serial] = kept
	}
	return nil
}

func (f *fakeStore) MarkEventProcessed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[id] = true
	return nil
}

func (f *fakeStore) MarkNotificationNotified(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified[id] = true
	return nil
}

func (f *fakeStore) FindMessage(ctx context.Context, controllerDevice bool, messageType string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[messageType]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return message, nil
}

// fakeSender records dispatches.
type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
	calls int
}

func (s *fakeSender) SendOutageNotification(ctx context.Context, customer *models.Customer, message *models.Message, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message.MessageType)
	return nil
}

func seedDirectory(store *fakeStore, serial string, controller bool) *models.Customer {
	customer := &models.Customer{
		ID:    uuid.New(),
		Name:  "Acme",
		Email: "ops@acme.example",
	}
	store.customers[customer.ID] = customer
	store.devices[serial] = []*models.CustomerDevice{{
		ID:           uuid.New(),
		Serial:       serial,
		MACAddress:   "aa:bb:cc:dd:ee:ff",
		CustomerID:   customer.ID.String(),
		IsController: controller,
	}}
	return customer
}

func seedTemplates(store *fakeStore) {
	for _, messageType := range []string{
		models.MessageFullOutage, models.MessagePartialOutage,
		models.MessageFullOutageResolved, models.MessagePartialOutageResolved,
	} {
		store.messages[messageType] = &models.Message{
			ID:          uuid.New(),
			MessageType: messageType,
			MessageText: "outage update for {{serial}}",
		}
	}
}

func onsetEvent(serial string) *models.Event {
	return &models.Event{ID: uuid.New(), Type: "wan_lost", Serial: serial, Date: time.Now()}
}

func resolutionEvent(serial string) *models.Event {
	return &models.Event{ID: uuid.New(), Type: "wan_restored", Serial: serial, Date: time.Now()}
}

func TestProcessEvent_OnsetOpensAndNotifies(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN100", true)
	seedTemplates(store)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	event := onsetEvent("SN100")
	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.created))
	}
	if !store.processed[event.ID] {
		t.Fatal("event not marked processed")
	}
	if store.commits != 1 {
		t.Fatalf("expected 1 commit, got %d", store.commits)
	}
	if len(sender.sent) != 1 || sender.sent[0] != models.MessageFullOutage {
		t.Fatalf("expected full outage dispatch, got %v", sender.sent)
	}
	if !store.notified[store.created[0].ID] {
		t.Fatal("notified flag not set after successful dispatch")
	}
}

func TestProcessEvent_SubordinateDeviceGetsPartialTemplate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN101", false)
	seedTemplates(store)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	if err := eng.ProcessEvent(context.Background(), onsetEvent("SN101")); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0] != models.MessagePartialOutage {
		t.Fatalf("expected partial outage dispatch, got %v", sender.sent)
	}
}

func TestProcessEvent_DuplicateOnsetIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN102", true)
	seedTemplates(store)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	first := onsetEvent("SN102")
	second := onsetEvent("SN102")

	if err := eng.ProcessEvent(context.Background(), first); err != nil {
		t.Fatalf("first onset: %v", err)
	}
	if err := eng.ProcessEvent(context.Background(), second); err != nil {
		t.Fatalf("second onset: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.created))
	}
	if !store.processed[second.ID] {
		t.Fatal("duplicate onset not marked processed")
	}
	if sender.calls != 1 {
		t.Fatalf("expected 1 dispatch, got %d", sender.calls)
	}
}

func TestProcessEvent_UnresolvableSerialSkips(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTemplates(store)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	event := onsetEvent("SN-UNKNOWN")
	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(store.created) != 0 {
		t.Fatal("unexpected notification for unknown serial")
	}
	if !store.processed[event.ID] {
		t.Fatal("event not marked processed")
	}
	if sender.calls != 0 {
		t.Fatal("unexpected dispatch")
	}
}

func TestProcessEvent_MalformedOwnerIDSkips(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.devices["SN103"] = []*models.CustomerDevice{{
		ID:         uuid.New(),
		Serial:     "SN103",
		CustomerID: "not-a-uuid",
	}}
	eng := New(store, &fakeSender{}, nil)

	event := onsetEvent("SN103")
	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(store.created) != 0 {
		t.Fatal("unexpected notification for malformed owner id")
	}
	if !store.processed[event.ID] {
		t.Fatal("event not marked processed")
	}
}

func TestProcessEvent_ResolutionClosesEpisode(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN104", true)
	seedTemplates(store)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	if err := eng.ProcessEvent(context.Background(), onsetEvent("SN104")); err != nil {
		t.Fatalf("onset: %v", err)
	}

	event := resolutionEvent("SN104")
	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("resolution: %v", err)
	}

	if len(store.open["SN104"]) != 0 {
		t.Fatal("episode still open after resolution")
	}
	if len(store.closed) != 1 {
		t.Fatalf("expected 1 closed episode, got %d", len(store.closed))
	}
	if !store.processed[event.ID] {
		t.Fatal("resolution event not marked processed")
	}
	if len(sender.sent) != 2 || sender.sent[1] != models.MessageFullOutageResolved {
		t.Fatalf("expected resolved dispatch, got %v", sender.sent)
	}
}

func TestProcessEvent_ResolutionWithoutOpenEpisode(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN105", true)
	seedTemplates(store)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	event := resolutionEvent("SN105")
	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(store.closed) != 0 {
		t.Fatal("unexpected close without open episode")
	}
	if !store.processed[event.ID] {
		t.Fatal("event not marked processed")
	}
	if sender.calls != 0 {
		t.Fatal("unexpected dispatch")
	}
}

func TestProcessEvent_ResolutionClosesAllWhenCorrupted(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	customer := seedDirectory(store, "SN106", false)
	seedTemplates(store)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	// Two open rows violate the invariant; resolution must heal the ledger.
	older := &models.Notification{
		ID: uuid.New(), CustomerID: customer.ID, Serial: "SN106",
		StartDate: time.Now().Add(-2 * time.Hour),
	}
	newer := &models.Notification{
		ID: uuid.New(), CustomerID: customer.ID, Serial: "SN106",
		StartDate: time.Now().Add(-time.Hour),
	}
	store.open["SN106"] = []*models.Notification{older, newer}

	if err := eng.ProcessEvent(context.Background(), resolutionEvent("SN106")); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(store.closed) != 2 {
		t.Fatalf("expected both episodes closed, got %d", len(store.closed))
	}
	// Only the oldest drives the outbound dispatch.
	if sender.calls != 1 {
		t.Fatalf("expected 1 dispatch, got %d", sender.calls)
	}
}

func TestProcessEvent_ResolutionEndDateNeverBeforeStart(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	customer := seedDirectory(store, "SN107", true)
	seedTemplates(store)
	eng := New(store, &fakeSender{}, nil)

	start := time.Now()
	episode := &models.Notification{
		ID: uuid.New(), CustomerID: customer.ID, Serial: "SN107", StartDate: start,
	}
	store.open["SN107"] = []*models.Notification{episode}

	// Resolution stamped before the outage started (clock skew upstream).
	event := resolutionEvent("SN107")
	event.Date = start.Add(-time.Minute)

	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	endDate, ok := store.closed[episode.ID]
	if !ok {
		t.Fatal("episode not closed")
	}
	if endDate.Before(start) {
		t.Fatalf("end date %v before start %v", endDate, start)
	}
}

func TestProcessEvent_IrrelevantMarksProcessed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	event := &models.Event{ID: uuid.New(), Type: "cpu_high", Serial: "SN108"}
	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if !store.processed[event.ID] {
		t.Fatal("irrelevant event not marked processed")
	}
	if sender.calls != 0 || len(store.created) != 0 {
		t.Fatal("irrelevant event produced side effects")
	}
}

func TestProcessEvent_AlreadyProcessedIsNoop(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	eng := New(store, &fakeSender{}, nil)

	event := onsetEvent("SN109")
	event.Processed = true

	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if len(store.created) != 0 {
		t.Fatal("processed event produced side effects")
	}
}

func TestProcessEvent_SendFailureKeepsEpisodeUnnotified(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN110", true)
	seedTemplates(store)
	sender := &fakeSender{err: errors.New("smtp down")}
	eng := New(store, sender, nil)

	event := onsetEvent("SN110")
	if err := eng.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected episode despite send failure, got %d", len(store.created))
	}
	if !store.processed[event.ID] {
		t.Fatal("event not marked processed despite send failure")
	}
	if store.notified[store.created[0].ID] {
		t.Fatal("notified flag set although dispatch failed")
	}
}

func TestProcessEvent_MissingTemplateSkipsDispatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN111", false)
	sender := &fakeSender{}
	eng := New(store, sender, nil)

	if err := eng.ProcessEvent(context.Background(), onsetEvent("SN111")); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatal("episode not created")
	}
	if sender.calls != 0 {
		t.Fatal("dispatch happened without a template")
	}
	if store.notified[store.created[0].ID] {
		t.Fatal("notified flag set without dispatch")
	}
}

func TestProcessEvent_StorageErrorLeavesEventUnprocessed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.findOpenErr = errors.New("connection refused")
	eng := New(store, &fakeSender{}, nil)

	event := onsetEvent("SN112")
	if err := eng.ProcessEvent(context.Background(), event); err == nil {
		t.Fatal("expected error from storage failure")
	}
	if store.processed[event.ID] {
		t.Fatal("event marked processed despite storage failure")
	}
}

func TestProcessEvent_ConcurrentOnsetsOpenOneEpisode(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN113", true)
	seedTemplates(store)
	eng := New(store, &fakeSender{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := eng.ProcessEvent(context.Background(), onsetEvent("SN113")); err != nil {
				t.Errorf("ProcessEvent: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(store.created) != 1 {
		t.Fatalf("expected exactly 1 episode, got %d", len(store.created))
	}
}

func TestResolveOwner_TwoHop(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	want := seedDirectory(store, "SN114", false)

	device, customer, err := resolveOwner(context.Background(), store, "SN114")
	if err != nil {
		t.Fatalf("resolveOwner: %v", err)
	}
	if device.Serial != "SN114" {
		t.Fatalf("unexpected device %q", device.Serial)
	}
	if customer.ID != want.ID {
		t.Fatalf("unexpected customer %s", customer.ID)
	}
}

func TestResolveOwner_MissingCustomer(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.devices["SN115"] = []*models.CustomerDevice{{
		ID:         uuid.New(),
		Serial:     "SN115",
		CustomerID: uuid.New().String(),
	}}

	_, _, err := resolveOwner(context.Background(), store, "SN115")
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

// stallingSender blocks its first delivery until released, so a test can hold
// a send in flight while driving other events through the engine.
type stallingSender struct {
	started chan struct{}
	release chan struct{}
	first   sync.Once
	inner   fakeSender
}

func (s *stallingSender) SendOutageNotification(ctx context.Context, customer *models.Customer, message *models.Message, notification *models.Notification) error {
	stall := false
	s.first.Do(func() { stall = true })
	if stall {
		close(s.started)
		<-s.release
	}
	return s.inner.SendOutageNotification(ctx, customer, message, notification)
}

func TestProcessEvent_DispatchDoesNotHoldSerialLock(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDirectory(store, "SN120", true)
	seedTemplates(store)

	sender := &stallingSender{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := New(store, sender, nil)

	onset := onsetEvent("SN120")
	onsetDone := make(chan error, 1)
	go func() {
		onsetDone <- eng.ProcessEvent(context.Background(), onset)
	}()

	select {
	case <-sender.started:
	case <-time.After(5 * time.Second):
		t.Fatal("onset dispatch never started")
	}

	// The onset email is still in flight. A resolution for the same serial
	// must proceed: the serial lock is released once the ledger commits.
	resolution := resolutionEvent("SN120")
	resolutionDone := make(chan error, 1)
	go func() {
		resolutionDone <- eng.ProcessEvent(context.Background(), resolution)
	}()

	select {
	case err := <-resolutionDone:
		if err != nil {
			t.Fatalf("resolution failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resolution blocked behind in-flight onset dispatch")
	}

	close(sender.release)
	if err := <-onsetDone; err != nil {
		t.Fatalf("onset failed: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.processed[resolution.ID] {
		t.Fatal("resolution event not marked processed")
	}
	if len(store.open["SN120"]) != 0 {
		t.Fatal("episode not closed")
	}
}
