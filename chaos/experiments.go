package chaos

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

func bodyReader(body string) io.Reader {
	if body == "" {
		return nil
	}
	return strings.NewReader(body)
}

// RegisterExperiments registers the standing experiment suite.
func (e *Engine) RegisterExperiments(loyaltyURL, walletURL string) {
	e.Register(e.DatabaseLatencyExperiment(250 * time.Millisecond))
	e.Register(e.WalletOutageExperiment())
	e.Register(e.ConcurrentReconciliationRace(loyaltyURL))
	e.Register(e.ConcurrentTabSettlementRace(walletURL))
	e.Register(e.ConnectionPoolExhaustionExperiment())
}

// DatabaseLatencyExperiment injects latency into database operations
// and watches whether sales keep landing.
func (e *Engine) DatabaseLatencyExperiment(targetLatency time.Duration) Experiment {
	return Experiment{
		Name:       "database-latency-injection",
		Hypothesis: "Sales keep completing when database latency rises",
		SteadyState: []Metric{
			{
				Name: "sale_success_rate",
				Query: func(ctx context.Context) (float64, error) {
					var successRate float64
					err := e.db.QueryRowContext(ctx, `
						SELECT COALESCE(
							COUNT(*) FILTER (WHERE status IN ('completed', 'open'))::float / NULLIF(COUNT(*)::float, 0) * 100,
							100.0
						) FROM transactions WHERE created_at > NOW() - INTERVAL '1 minute'
					`).Scan(&successRate)
					return successRate, err
				},
				Threshold: Threshold{Operator: ">", Value: 99.0},
			},
		},
		Method: []Action{
			{
				Type:   "inject-latency",
				Target: "postgres-primary",
				Parameters: map[string]interface{}{
					"latency": targetLatency,
					"jitter":  50 * time.Millisecond,
				},
				Execute: func(ctx context.Context) error {
					// In production this goes through a TCP proxy or
					// network policy; locally it is a no-op marker.
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "remove-latency",
				Target: "postgres-primary",
				Execute: func(ctx context.Context) error {
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "sale_success_rate",
				Condition: func(v float64) bool { return v > 95.0 },
				Message:   "Sale success rate should remain above 95%",
			},
		},
		Duration:    5 * time.Minute,
		BlastRadius: 1.0,
	}
}

// WalletOutageExperiment validates that the circuit breaker around the
// wallet client keeps the sales service responsive while the wallet
// service is down. Cash and card sales carry no wallet dependency and
// must be unaffected.
func (e *Engine) WalletOutageExperiment() Experiment {
	return Experiment{
		Name:       "wallet-service-outage",
		Hypothesis: "Cash and card sales complete while the wallet service is down",
		SteadyState: []Metric{
			{
				Name: "non_tab_sale_success_rate",
				Query: func(ctx context.Context) (float64, error) {
					var successRate float64
					err := e.db.QueryRowContext(ctx, `
						SELECT COALESCE(
							COUNT(*) FILTER (WHERE status = 'completed')::float / NULLIF(COUNT(*)::float, 0) * 100,
							100.0
						) FROM transactions
						WHERE payment_method IN ('cash', 'card')
						  AND created_at > NOW() - INTERVAL '1 minute'
					`).Scan(&successRate)
					return successRate, err
				},
				Threshold: Threshold{Operator: ">", Value: 99.0},
			},
		},
		Method: []Action{
			{
				Type:   "kill-pod",
				Target: "wallet",
				Execute: func(ctx context.Context) error {
					// In production: scale the wallet deployment to zero.
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "restore-pod",
				Target: "wallet",
				Execute: func(ctx context.Context) error {
					// In production: scale the wallet deployment back up.
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "non_tab_sale_success_rate",
				Condition: func(v float64) bool { return v > 95.0 },
				Message:   "Cash and card sales should keep a 95% success rate",
			},
		},
		Duration:    2 * time.Minute,
		BlastRadius: 0.5,
	}
}

// ConcurrentReconciliationRace fires many simultaneous reconciliations
// for one customer and verifies the tier ratchet: at most one upgrade
// event per customer per tier, and no customer ends below the tier
// their spend justifies.
func (e *Engine) ConcurrentReconciliationRace(loyaltyURL string) Experiment {
	customerID := uuid.New()

	return Experiment{
		Name:       "concurrent-reconciliation-race",
		Hypothesis: "Racing reconciliations produce exactly one tier upgrade",
		SteadyState: []Metric{
			{
				Name: "duplicate_upgrade_events",
				Query: func(ctx context.Context) (float64, error) {
					var duplicates int
					err := e.db.QueryRowContext(ctx, `
						SELECT COUNT(*) FROM (
							SELECT aggregate_id, event_data->>'to_tier' AS tier, COUNT(*) AS n
							FROM events
							WHERE event_type = 'CustomerTierUpgraded'
							GROUP BY aggregate_id, event_data->>'to_tier'
						) dup WHERE n > 1
					`).Scan(&duplicates)
					return float64(duplicates), err
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "loyalty",
				Parameters: map[string]interface{}{
					"concurrency": 100,
					"customer_id": customerID.String(),
				},
				Execute: func(ctx context.Context) error {
					var wg sync.WaitGroup
					url := fmt.Sprintf("%s/customers/%s/reconcile", loyaltyURL, customerID)

					for i := 0; i < 100; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
							if err != nil {
								return
							}
							resp, err := http.DefaultClient.Do(req)
							if err != nil {
								return
							}
							resp.Body.Close()
						}()
					}

					wg.Wait()
					return nil
				},
			},
		},
		Rollback: []Action{},
		Validation: []Assertion{
			{
				Metric:    "duplicate_upgrade_events",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "A tier must never be granted twice to the same customer",
			},
		},
		Duration:    30 * time.Second,
		BlastRadius: 0.1,
	}
}

// ConcurrentTabSettlementRace hammers one wallet with interleaved
// charges and settlements and verifies the ledger invariant: the
// cached balance always equals the sum of entries and never goes
// negative.
func (e *Engine) ConcurrentTabSettlementRace(walletURL string) Experiment {
	return Experiment{
		Name:       "concurrent-tab-settlement-race",
		Hypothesis: "Interleaved charges and settlements never corrupt a wallet balance",
		SteadyState: []Metric{
			{
				Name: "ledger_inconsistencies",
				Query: func(ctx context.Context) (float64, error) {
					var inconsistencies int
					err := e.db.QueryRowContext(ctx, `
						SELECT COUNT(*) FROM wallets w
						WHERE w.current_balance < 0
						   OR w.current_balance <> COALESCE((
							SELECT SUM(CASE WHEN entry_type = 'charge' THEN amount ELSE -amount END)
							FROM wallet_entries e WHERE e.wallet_id = w.id
						), 0)
					`).Scan(&inconsistencies)
					return float64(inconsistencies), err
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "wallet",
				Parameters: map[string]interface{}{
					"concurrency": 50,
				},
				Execute: func(ctx context.Context) error {
					customerID := uuid.New()
					var wg sync.WaitGroup

					for i := 0; i < 50; i++ {
						wg.Add(1)
						settle := i%5 == 0
						go func() {
							defer wg.Done()
							path := "charges"
							body := `{"amount": "10.00", "description": "chaos charge"}`
							if settle {
								path = "settle"
								body = ""
							}
							url := fmt.Sprintf("%s/wallets/%s/%s", walletURL, customerID, path)
							req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bodyReader(body))
							if err != nil {
								return
							}
							req.Header.Set("Content-Type", "application/json")
							resp, err := http.DefaultClient.Do(req)
							if err != nil {
								return
							}
							resp.Body.Close()
						}()
					}

					wg.Wait()
					return nil
				},
			},
		},
		Rollback: []Action{},
		Validation: []Assertion{
			{
				Metric:    "ledger_inconsistencies",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Every wallet balance must equal the sum of its entries",
			},
		},
		Duration:    30 * time.Second,
		BlastRadius: 0.1,
	}
}

// ConnectionPoolExhaustionExperiment holds database connections open
// and checks that the services shed load instead of cascading.
func (e *Engine) ConnectionPoolExhaustionExperiment() Experiment {
	return Experiment{
		Name:       "database-connection-pool-exhaustion",
		Hypothesis: "Circuit breakers keep the error rate bounded when the pool is exhausted",
		SteadyState: []Metric{
			{
				Name: "error_rate",
				Query: func(ctx context.Context) (float64, error) {
					// Would query error metrics from the gateway.
					return 0.0, nil
				},
				Threshold: Threshold{Operator: "<", Value: 1.0},
			},
		},
		Method: []Action{
			{
				Type:   "exhaust-connections",
				Target: "postgres-connection-pool",
				Execute: func(ctx context.Context) error {
					conns := make([]*sql.Conn, 0)
					for i := 0; i < 100; i++ {
						conn, err := e.db.Conn(ctx)
						if err != nil {
							break
						}
						conns = append(conns, conn)
					}
					time.Sleep(30 * time.Second)
					for _, conn := range conns {
						conn.Close()
					}
					return nil
				},
			},
		},
		Rollback: []Action{},
		Validation: []Assertion{
			{
				Metric:    "error_rate",
				Condition: func(v float64) bool { return v < 5.0 },
				Message:   "Error rate should stay below 5%",
			},
		},
		Duration:    2 * time.Minute,
		BlastRadius: 1.0,
	}
}
