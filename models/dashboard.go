package models

// WalletDashboard is the admin view of manual UPI money movement.
type WalletDashboard struct {
	PendingDeposits    []LedgerTransaction `json:"pending_deposits"`
	DoneDeposits       []LedgerTransaction `json:"done_deposits"`
	PendingWithdrawals []LedgerTransaction `json:"pending_withdrawals"`
	DoneWithdrawals    []LedgerTransaction `json:"done_withdrawals"`
}
