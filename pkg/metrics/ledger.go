package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts internal transfers and external rail movements by
// outcome so dashboards can watch the settlement and reconciliation paths.
type LedgerMetrics struct {
	transfers *prometheus.CounterVec
	onramps   *prometheus.CounterVec
	amounts   *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Internal wallet transfers by type and outcome.",
	}, []string{"type", "outcome"})
	onramps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_onramps_total",
		Help: "External onramp entries by terminal status.",
	}, []string{"status"})
	amounts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfer_cents_total",
		Help: "Total cents moved through completed transfers by type.",
	}, []string{"type"})
	reg.MustRegister(transfers, onramps, amounts)
	return &LedgerMetrics{transfers: transfers, onramps: onramps, amounts: amounts}
}

// IncTransfer counts one transfer attempt with its outcome label.
func (m *LedgerMetrics) IncTransfer(txType, outcome string) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(normalizeLabel(txType), normalizeLabel(outcome)).Inc()
}

// AddTransferAmount accumulates cents moved for completed transfers.
func (m *LedgerMetrics) AddTransferAmount(txType string, amountCents int64) {
	if m == nil || m.amounts == nil || amountCents <= 0 {
		return
	}
	m.amounts.WithLabelValues(normalizeLabel(txType)).Add(float64(amountCents))
}

// IncOnramp counts one onramp entry landing in a terminal status.
func (m *LedgerMetrics) IncOnramp(status string) {
	if m == nil || m.onramps == nil {
		return
	}
	m.onramps.WithLabelValues(normalizeLabel(status)).Inc()
}
