package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"donation/internal/domain"
	"donation/internal/service"
)

// ──────────────────────────────────────────────
// 3. CONCURRENT RECONCILIATION
// ──────────────────────────────────────────────

func TestReconcile_ConcurrentDuplicates_ExactlyOneSucceeds(t *testing.T) {
	t.Parallel()

	h := newHarness("abc123")
	ctx := context.Background()

	if _, err := h.checkout.StartCheckout(ctx, service.StartCheckoutRequest{Amount: "5.00", OrderID: "DON-1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	const attempts = 10
	var (
		wg          sync.WaitGroup
		successes   int32
		duplicates  int32
		otherErrors int32
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.reconciler.Reconcile(ctx, service.ReconcileRequest{
				OrderID: "DON-1",
				Token:   "abc123",
				Payload: receiptPayload("DON-1", "abc123", "5.00"),
			})
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, service.ErrInvalidTransition):
				atomic.AddInt32(&duplicates, 1)
			default:
				atomic.AddInt32(&otherErrors, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if duplicates != attempts-1 {
		t.Errorf("expected %d duplicates, got %d", attempts-1, duplicates)
	}
	if otherErrors != 0 {
		t.Errorf("expected no other errors, got %d", otherErrors)
	}
	if got := h.repo.GetSession("DON-1").State; got != domain.SessionStateCompleted {
		t.Errorf("expected COMPLETED, got %s", got)
	}
}

func TestReconcile_ReceiptRacesCancel(t *testing.T) {
	t.Parallel()

	h := newHarness("abc123")
	ctx := context.Background()

	if _, err := h.checkout.StartCheckout(ctx, service.StartCheckoutRequest{Amount: "5.00", OrderID: "DON-1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var wg sync.WaitGroup
	var reconcileErr, cancelErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, reconcileErr = h.reconciler.Reconcile(ctx, service.ReconcileRequest{
			OrderID: "DON-1",
			Token:   "abc123",
			Payload: receiptPayload("DON-1", "abc123", "5.00"),
		})
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = h.checkout.Cancel(ctx, "DON-1", "abc123")
	}()
	wg.Wait()

	final := h.repo.GetSession("DON-1").State
	switch final {
	case domain.SessionStateCompleted:
		if reconcileErr != nil || !errors.Is(cancelErr, service.ErrInvalidTransition) {
			t.Errorf("completed session: reconcile=%v cancel=%v", reconcileErr, cancelErr)
		}
	case domain.SessionStateCancelled:
		if cancelErr != nil || !errors.Is(reconcileErr, service.ErrInvalidTransition) {
			t.Errorf("cancelled session: reconcile=%v cancel=%v", reconcileErr, cancelErr)
		}
	default:
		t.Errorf("expected COMPLETED or CANCELLED, got %s", final)
	}
}

func TestReconcile_DifferentOrdersProceedInParallel(t *testing.T) {
	t.Parallel()

	h := newHarness("abc123")
	h.gw.Delay = 50 * time.Millisecond
	ctx := context.Background()

	const orders = 8
	var wg sync.WaitGroup
	errs := make(chan error, orders)

	start := time.Now()
	for i := 0; i < orders; i++ {
		orderID := fmt.Sprintf("DON-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.checkout.StartCheckout(ctx, service.StartCheckoutRequest{Amount: "5.00", OrderID: orderID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	}

	// Serialized ticket requests would take orders*Delay.
	if elapsed := time.Since(start); elapsed >= orders*h.gw.Delay {
		t.Errorf("expected parallel ticket requests, took %v", elapsed)
	}
	if h.repo.CountSessions() != orders {
		t.Errorf("expected %d sessions, got %d", orders, h.repo.CountSessions())
	}
}

func TestCheckout_ConcurrentStartsForSameOrder(t *testing.T) {
	t.Parallel()

	h := newHarness("abc123")
	h.gw.Delay = 10 * time.Millisecond
	ctx := context.Background()

	const attempts = 5
	var (
		wg        sync.WaitGroup
		successes int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.checkout.StartCheckout(ctx, service.StartCheckoutRequest{Amount: "5.00", OrderID: "DON-1"}); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 ticket bound, got %d", successes)
	}
	if got := h.repo.GetSession("DON-1").State; got != domain.SessionStateTicketIssued {
		t.Errorf("expected TICKET_ISSUED, got %s", got)
	}
}

// ──────────────────────────────────────────────
// 4. EVENTS DURING AN IN-FLIGHT PURCHASE
// ──────────────────────────────────────────────

// startHeldPurchase runs CompletePurchase in the background and returns once
// the gateway call is in flight. Closing hold lets the gateway answer.
func startHeldPurchase(t *testing.T, h *harness, orderID string) (hold chan struct{}, done <-chan error) {
	t.Helper()

	h.gw.PurchaseEntered = make(chan struct{}, 1)
	h.gw.PurchaseHold = make(chan struct{})

	result := make(chan error, 1)
	go func() {
		_, err := h.checkout.CompletePurchase(context.Background(), service.CompletePurchaseRequest{
			OrderID: orderID,
			Amount:  "5.00",
			DataKey: "dk-1",
		})
		result <- err
	}()

	select {
	case <-h.gw.PurchaseEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("purchase never reached the gateway")
	}
	return h.gw.PurchaseHold, result
}

func TestPurchase_CancelDuringPurchaseIsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness("unused")
	hold, done := startHeldPurchase(t, h, "DON-P")

	if _, err := h.checkout.Cancel(context.Background(), "DON-P", "dk-1"); !errors.Is(err, service.ErrFlowMismatch) {
		t.Errorf("expected ErrFlowMismatch, got %v", err)
	}

	close(hold)
	if err := <-done; err != nil {
		t.Fatalf("expected approved purchase, got %v", err)
	}

	session := h.repo.GetSession("DON-P")
	if session.State != domain.SessionStateCompleted {
		t.Errorf("expected COMPLETED, got %s", session.State)
	}
	if session.Result == nil || !session.Result.Approved {
		t.Errorf("expected approved settlement, got %+v", session.Result)
	}
}

func TestPurchase_RelayedReceiptCannotSettle(t *testing.T) {
	t.Parallel()

	for _, verify := range []bool{false, true} {
		t.Run(fmt.Sprintf("verify=%t", verify), func(t *testing.T) {
			t.Parallel()

			h := newHarness("unused")
			h.reconciler = service.NewReconciler(h.repo, h.gw, h.locker, verify)
			h.checkout = service.NewCheckoutService(h.repo, h.gw, h.locker, service.NewAmountValidator(nil), h.reconciler)

			// The gateway declines the real charge.
			declined := ApprovedPurchaseReceipt("DON-R", decimal.RequireFromString("5.00"))
			declined.ResponseCode = "481"
			declined.Message = "DECLINED"
			h.gw.Receipt = declined

			hold, done := startHeldPurchase(t, h, "DON-R")

			forged := `"<response><receipt><ReceiptId>DON-R</ReceiptId><ResponseCode>027</ResponseCode><Complete>true</Complete><TransAmount>5.00</TransAmount></receipt></response>"`
			_, err := h.reconciler.Reconcile(context.Background(), service.ReconcileRequest{
				OrderID: "DON-R",
				Token:   "dk-1",
				Payload: []byte(forged),
			})
			if !errors.Is(err, service.ErrFlowMismatch) {
				t.Errorf("expected ErrFlowMismatch, got %v", err)
			}

			close(hold)
			if err := <-done; !errors.Is(err, service.ErrPaymentDeclined) {
				t.Errorf("expected ErrPaymentDeclined, got %v", err)
			}

			session := h.repo.GetSession("DON-R")
			if session.State != domain.SessionStateFailed {
				t.Errorf("expected FAILED, got %s", session.State)
			}
			if session.Result == nil || session.Result.Approved || session.Result.ResponseCode != "481" {
				t.Errorf("expected the gateway decline to be recorded, got %+v", session.Result)
			}
		})
	}
}

