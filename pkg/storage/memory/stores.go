package memory

import "veilfi-wallet/pkg/storage"

// NewStores returns a full set of in-memory stores.
func NewStores() storage.Stores {
	return storage.Stores{
		Users:      NewUserStore(),
		Activities: NewActivityStore(),
		Orders:     NewOrderStore(),
		Deposits:   NewDepositStore(),
	}
}
